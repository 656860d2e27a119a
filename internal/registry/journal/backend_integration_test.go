//go:build integration

package journal

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"trustreg/pkg/platform/sentinel"
	"trustreg/pkg/testutil/containers"
)

// BackendSuite runs the same contract against every durable journal.
type BackendSuite struct {
	suite.Suite
	newJournal func() Journal
}

func (s *BackendSuite) TestAppendLoadVerify() {
	ctx := context.Background()
	j := s.newJournal()
	first := newEntry(1, KindRegistered, "M1")
	first.Name = "MedSupply Inc"
	first.LicenseNumber = "MS12345"
	entries := chain(
		first,
		newEntry(2, KindRegistered, "M2"),
		newEntry(3, KindDeactivated, "M1"),
	)

	for _, e := range entries {
		s.Require().NoError(j.Append(ctx, e))
	}

	loaded, err := j.Load(ctx)
	s.Require().NoError(err)
	s.Require().Len(loaded, 3)
	s.Equal(entries[0].Name, loaded[0].Name)
	s.Equal(entries[2].Hash, loaded[2].Hash)
	s.True(entries[1].RecordedAt.Equal(loaded[1].RecordedAt))
	s.Require().NoError(Verify(ctx, loaded))

	history, err := j.EntriesFor(ctx, "M1")
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(KindDeactivated, history[1].Kind)
}

func (s *BackendSuite) TestStoresFieldsVerbatim() {
	ctx := context.Background()
	j := s.newJournal()
	e := newEntry(1, KindRegistered, "M1")
	e.Name = "Med\x00Supply"
	e.LicenseNumber = "MS\x00\x01\u00e9"
	entries := chain(e)
	s.Require().NoError(j.Append(ctx, entries[0]))

	loaded, err := j.Load(ctx)
	s.Require().NoError(err)
	s.Require().Len(loaded, 1)
	s.Equal("Med\x00Supply", loaded[0].Name)
	s.Equal("MS\x00\x01\u00e9", loaded[0].LicenseNumber)
	s.NoError(Verify(ctx, loaded))
}

func (s *BackendSuite) TestRejectsNonIncreasingHeight() {
	ctx := context.Background()
	j := s.newJournal()
	entries := chain(newEntry(1, KindRegistered, "M1"), newEntry(2, KindDeactivated, "M1"))
	s.Require().NoError(j.Append(ctx, entries[0]))
	s.Require().NoError(j.Append(ctx, entries[1]))

	s.ErrorIs(j.Append(ctx, newEntry(2, KindReactivated, "M1")), sentinel.ErrConflict)
	s.ErrorIs(j.Append(ctx, newEntry(1, KindReactivated, "M1")), sentinel.ErrConflict)
}

func (s *BackendSuite) TestConcurrentAppendsAtSameHeight() {
	ctx := context.Background()
	j := s.newJournal()
	const writers = 20

	var wg sync.WaitGroup
	var ok, conflicts atomic.Int32
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := newEntry(1, KindRegistered, "M1")
			e.Seal(Digest{})
			err := j.Append(ctx, e)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), ok.Load())
	s.Equal(int32(writers-1), conflicts.Load())
}

func TestPostgresJournal(t *testing.T) {
	pg := containers.GetManager().GetPostgres(t)
	j := NewPostgres(pg.DB)
	if err := j.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	suite.Run(t, &BackendSuite{newJournal: func() Journal {
		if err := pg.TruncateTables(context.Background(), "registry_journal"); err != nil {
			t.Fatal(err)
		}
		return j
	}})
}

func TestRedisJournal(t *testing.T) {
	rc := containers.GetManager().GetRedis(t)
	suite.Run(t, &BackendSuite{newJournal: func() Journal {
		if err := rc.FlushAll(context.Background()); err != nil {
			t.Fatal(err)
		}
		return NewRedis(rc.Client, "trustreg:journal:test")
	}})
}
