package journal

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"trustreg/pkg/platform/sentinel"
)

const verifyChunk = 256

// Verify checks that heights strictly increase, that each entry links to its
// predecessor and that every stored hash matches its contents. Hashes are
// recomputed in parallel chunks.
func Verify(ctx context.Context, entries []Entry) error {
	var prev Digest
	var lastHeight uint64
	for i, e := range entries {
		if i > 0 && uint64(e.Height) <= lastHeight {
			return fmt.Errorf("entry %d: height %d does not follow %d: %w", i, e.Height, lastHeight, sentinel.ErrTampered)
		}
		if e.PrevHash != prev {
			return fmt.Errorf("entry at height %d: broken link: %w", e.Height, sentinel.ErrTampered)
		}
		if !e.Kind.IsValid() {
			return fmt.Errorf("entry at height %d: unknown kind %q: %w", e.Height, e.Kind, sentinel.ErrTampered)
		}
		prev = e.Hash
		lastHeight = uint64(e.Height)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for start := 0; start < len(entries); start += verifyChunk {
		chunk := entries[start:min(start+verifyChunk, len(entries))]
		g.Go(func() error {
			for _, e := range chunk {
				if err := ctx.Err(); err != nil {
					return err
				}
				if e.ComputeHash() != e.Hash {
					return fmt.Errorf("entry at height %d: hash mismatch: %w", e.Height, sentinel.ErrTampered)
				}
			}
			return nil
		})
	}
	return g.Wait()
}
