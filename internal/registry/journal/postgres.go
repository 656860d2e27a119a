package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"trustreg/contracts/registry"
	"trustreg/pkg/platform/sentinel"
)

//go:embed schema.sql
var schema string

const pgUniqueViolation = "23505"

// Postgres stores the journal in the registry_journal table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the journal table if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate journal schema: %w", err)
	}
	return nil
}

// Append inserts e only if its height is above every stored height.
func (p *Postgres) Append(ctx context.Context, e Entry) error {
	query := `
		INSERT INTO registry_journal (
			height, id, kind, entity_id, caller, name, license_number,
			recorded_at, prev_hash, hash
		)
		SELECT $1::bigint, $2::uuid, $3::text, $4::text, $5::text, $6::bytea, $7::bytea,
			$8::timestamptz, $9::bytea, $10::bytea
		WHERE $1::bigint > (SELECT COALESCE(MAX(height), 0) FROM registry_journal)
	`
	res, err := p.db.ExecContext(ctx, query,
		int64(e.Height),
		e.ID,
		string(e.Kind),
		string(e.EntityID),
		string(e.Caller),
		[]byte(e.Name),
		[]byte(e.LicenseNumber),
		e.RecordedAt,
		e.PrevHash[:],
		e.Hash[:],
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("append height %d: %w", e.Height, sentinel.ErrConflict)
		}
		return backendErr("insert journal entry", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return backendErr("insert journal entry", err)
	}
	if n == 0 {
		return fmt.Errorf("append height %d: %w", e.Height, sentinel.ErrConflict)
	}
	return nil
}

const selectEntries = `
	SELECT height, id, kind, entity_id, caller, name, license_number,
		   recorded_at, prev_hash, hash
	FROM registry_journal
`

func (p *Postgres) Load(ctx context.Context) ([]Entry, error) {
	rows, err := p.db.QueryContext(ctx, selectEntries+`ORDER BY height ASC`)
	if err != nil {
		return nil, backendErr("query journal", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (p *Postgres) EntriesFor(ctx context.Context, entities ...registry.EntityID) ([]Entry, error) {
	if len(entities) == 0 {
		return nil, nil
	}
	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = string(e)
	}
	rows, err := p.db.QueryContext(ctx, selectEntries+`WHERE entity_id = ANY($1) ORDER BY height ASC`, pq.Array(ids))
	if err != nil {
		return nil, backendErr("query journal entries", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			e                  Entry
			height             int64
			kind, entity, call string
			name, license      []byte
			prevHash, hash     []byte
		)
		err := rows.Scan(
			&height,
			&e.ID,
			&kind,
			&entity,
			&call,
			&name,
			&license,
			&e.RecordedAt,
			&prevHash,
			&hash,
		)
		if err != nil {
			return nil, backendErr("scan journal entry", err)
		}
		if len(prevHash) != len(e.PrevHash) || len(hash) != len(e.Hash) {
			return nil, fmt.Errorf("journal entry at height %d: malformed digest: %w", height, sentinel.ErrTampered)
		}
		e.Height = registry.Height(height)
		e.Kind = Kind(kind)
		e.EntityID = registry.EntityID(entity)
		e.Caller = registry.Principal(call)
		e.Name = string(name)
		e.LicenseNumber = string(license)
		e.RecordedAt = e.RecordedAt.UTC()
		copy(e.PrevHash[:], prevHash)
		copy(e.Hash[:], hash)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, backendErr("iterate journal", err)
	}
	return entries, nil
}
