package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/redis/go-redis/v9"

	"trustreg/contracts/registry"
	"trustreg/pkg/platform/sentinel"
)

const entryField = "entry"

// Redis stores the journal in a Redis stream. Stream IDs are "<height>-1",
// so Redis itself refuses an append at or below the last height.
type Redis struct {
	client redis.UniversalClient
	key    string
}

func NewRedis(client redis.UniversalClient, key string) *Redis {
	return &Redis{client: client, key: key}
}

func (r *Redis) Append(ctx context.Context, e Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}
	err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.key,
		ID:     fmt.Sprintf("%d-1", e.Height),
		Values: map[string]any{entryField: payload},
	}).Err()
	if err != nil {
		if strings.Contains(err.Error(), "equal or smaller") {
			return fmt.Errorf("append height %d: %w", e.Height, sentinel.ErrConflict)
		}
		return backendErr("xadd journal entry", err)
	}
	return nil
}

func (r *Redis) Load(ctx context.Context) ([]Entry, error) {
	msgs, err := r.client.XRange(ctx, r.key, "-", "+").Result()
	if err != nil {
		return nil, backendErr("xrange journal", err)
	}
	entries := make([]Entry, 0, len(msgs))
	for _, msg := range msgs {
		e, err := decodeMessage(msg)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// EntriesFor filters a full scan; streams have no secondary index.
func (r *Redis) EntriesFor(ctx context.Context, entities ...registry.EntityID) ([]Entry, error) {
	all, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range all {
		if slices.Contains(entities, e.EntityID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func decodeMessage(msg redis.XMessage) (Entry, error) {
	raw, ok := msg.Values[entryField].(string)
	if !ok {
		return Entry{}, fmt.Errorf("stream message %s: missing entry: %w", msg.ID, sentinel.ErrTampered)
	}
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Entry{}, fmt.Errorf("stream message %s: %v: %w", msg.ID, err, sentinel.ErrTampered)
	}
	if want := fmt.Sprintf("%d-1", e.Height); msg.ID != want {
		return Entry{}, fmt.Errorf("stream message %s carries height %d: %w", msg.ID, e.Height, sentinel.ErrTampered)
	}
	return e, nil
}
