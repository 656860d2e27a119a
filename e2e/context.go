package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestContext carries one scenario's HTTP state against a running server.
type TestContext struct {
	BaseURL    string
	SigningKey string
	Issuer     string
	Audience   string
	AdminToken string
	Authority  string

	client       *http.Client
	accessToken  string
	lastStatus   int
	lastBody     []byte
	lastResponse map[string]any
}

// NewTestContext reads the server location and secrets from TRUSTREG_E2E_*.
func NewTestContext() *TestContext {
	return &TestContext{
		BaseURL:    envOr("TRUSTREG_E2E_URL", "http://localhost:8080"),
		SigningKey: envOr("TRUSTREG_E2E_SIGNING_KEY", "dev-secret-key-change-in-production"),
		Issuer:     envOr("TRUSTREG_E2E_ISSUER", "trustreg"),
		Audience:   envOr("TRUSTREG_E2E_AUDIENCE", "trustreg-api"),
		AdminToken: os.Getenv("TRUSTREG_E2E_ADMIN_TOKEN"),
		Authority:  os.Getenv("TRUSTREG_E2E_AUTHORITY"),
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Reset clears per-scenario state.
func (tc *TestContext) Reset() {
	tc.accessToken = ""
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.lastResponse = nil
}

// AuthenticateAs mints a bearer token whose subject is principal.
func (tc *TestContext) AuthenticateAs(principal string) error {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":         principal,
		"iss":         tc.Issuer,
		"aud":         []string{tc.Audience},
		"iat":         now.Unix(),
		"exp":         now.Add(5 * time.Minute).Unix(),
		"api_version": "v1",
	})
	signed, err := token.SignedString([]byte(tc.SigningKey))
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	tc.accessToken = signed
	return nil
}

func (tc *TestContext) ClearAuth() {
	tc.accessToken = ""
}

func (tc *TestContext) GetAuthority() string {
	return tc.Authority
}

func (tc *TestContext) POST(path string, body any) error {
	return tc.do(http.MethodPost, path, body, nil)
}

func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.do(http.MethodGet, path, nil, headers)
}

func (tc *TestContext) AdminGET(path string) error {
	return tc.do(http.MethodGet, path, nil, map[string]string{"X-Admin-Token": tc.AdminToken})
}

func (tc *TestContext) StatusCode() int {
	return tc.lastStatus
}

func (tc *TestContext) RawBody() string {
	return string(tc.lastBody)
}

// GetResponseField walks a dotted path through the last JSON body.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	if tc.lastResponse == nil {
		return nil, fmt.Errorf("no JSON response body (status %d): %s", tc.lastStatus, tc.lastBody)
	}
	var cur any = tc.lastResponse
	for _, part := range strings.Split(field, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", field, part)
		}
		cur, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("field %q not present in response: %s", field, tc.lastBody)
		}
	}
	return cur, nil
}

func (tc *TestContext) do(method, path string, body any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, tc.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+tc.accessToken)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	tc.lastResponse = nil
	var parsed map[string]any
	if json.Unmarshal(tc.lastBody, &parsed) == nil {
		tc.lastResponse = parsed
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
