package registry

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GET(path string, headers map[string]string) error
	AuthenticateAs(principal string) error
	ClearAuth()
	GetAuthority() string
	GetResponseField(field string) (any, error)
}

// RegisterSteps registers registry step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &registrySteps{tc: tc}

	ctx.Step(`^a fresh manufacturer id$`, steps.freshManufacturer)
	ctx.Step(`^I am the registry authority$`, steps.authenticateAsAuthority)
	ctx.Step(`^I am authenticated as "([^"]*)"$`, steps.authenticateAs)
	ctx.Step(`^I am not authenticated$`, steps.notAuthenticated)
	ctx.Step(`^I register the manufacturer as "([^"]*)" with license "([^"]*)"$`, steps.register)
	ctx.Step(`^I deactivate the manufacturer$`, steps.deactivate)
	ctx.Step(`^I reactivate the manufacturer$`, steps.reactivate)
	ctx.Step(`^I check whether the manufacturer is verified$`, steps.checkVerified)
	ctx.Step(`^I fetch the manufacturer$`, steps.fetch)
	ctx.Step(`^I fetch the manufacturer history$`, steps.history)
	ctx.Step(`^the history should list (\d+) events$`, steps.historyShouldList)
}

type registrySteps struct {
	tc     TestContext
	entity string
}

func (s *registrySteps) freshManufacturer(context.Context) error {
	s.entity = fmt.Sprintf("E2E%d", time.Now().UnixNano())
	return nil
}

func (s *registrySteps) authenticateAsAuthority(context.Context) error {
	authority := s.tc.GetAuthority()
	if authority == "" {
		return fmt.Errorf("TRUSTREG_E2E_AUTHORITY is not set")
	}
	return s.tc.AuthenticateAs(authority)
}

func (s *registrySteps) authenticateAs(_ context.Context, principal string) error {
	return s.tc.AuthenticateAs(principal)
}

func (s *registrySteps) notAuthenticated(context.Context) error {
	s.tc.ClearAuth()
	return nil
}

func (s *registrySteps) register(_ context.Context, name, license string) error {
	return s.tc.POST("/v1/registry/manufacturers", map[string]string{
		"entity_id":      s.entity,
		"name":           name,
		"license_number": license,
	})
}

func (s *registrySteps) deactivate(context.Context) error {
	return s.tc.POST(s.path()+"/deactivate", nil)
}

func (s *registrySteps) reactivate(context.Context) error {
	return s.tc.POST(s.path()+"/reactivate", nil)
}

func (s *registrySteps) checkVerified(context.Context) error {
	return s.tc.GET(s.path()+"/verified", nil)
}

func (s *registrySteps) fetch(context.Context) error {
	return s.tc.GET(s.path(), nil)
}

func (s *registrySteps) history(context.Context) error {
	return s.tc.GET(s.path()+"/history", nil)
}

func (s *registrySteps) historyShouldList(_ context.Context, want int) error {
	v, err := s.tc.GetResponseField("events")
	if err != nil {
		return err
	}
	events, ok := v.([]any)
	if !ok || len(events) != want {
		return fmt.Errorf("expected %d history events, got %v", want, v)
	}
	return nil
}

func (s *registrySteps) path() string {
	return "/v1/registry/manufacturers/" + url.PathEscape(s.entity)
}
