package store

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jeremyhahn/go-twofactor/pkg/clock"
	"github.com/jeremyhahn/go-twofactor/pkg/otp"
)

const (
	createTable = `create table if not exists %[1]s (
	account_id text primary key,
	secret     text not null,
	type       text not null,
	algorithm  text not null default '',
	digits     integer not null default 0,
	period     integer not null default 0,
	counter    bigint not null default 0,
	issuer     text not null default '',
	name       text not null default '',
	created_at timestamptz not null,
	updated_at timestamptz not null
)`

	selectRow = `select account_id, secret, type, algorithm, digits, period, counter, issuer, name, created_at, updated_at
from %[1]s where account_id = $1`

	upsertRow = `insert into %[1]s (account_id, secret, type, algorithm, digits, period, counter, issuer, name, created_at, updated_at)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
on conflict (account_id) do update set
	secret = excluded.secret,
	type = excluded.type,
	algorithm = excluded.algorithm,
	digits = excluded.digits,
	period = excluded.period,
	counter = excluded.counter,
	issuer = excluded.issuer,
	name = excluded.name,
	updated_at = excluded.updated_at`

	deleteRow = `delete from %[1]s where account_id = $1`

	advanceRow = `update %[1]s set counter = $2, updated_at = $3 where account_id = $1 and counter < $2`

	existsRow = `select exists (select 1 from %[1]s where account_id = $1)`
)

// Commander defines the pgx operations required by the Postgres store.
// *pgxpool.Pool, *pgx.Conn and pgx.Tx satisfy it.
type Commander interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres stores registrations in a single table.
type Postgres struct {
	db     Commander
	table  string
	clock  clock.Clocker
	closer func()
}

// NewPostgres creates a Postgres store over db. Call Migrate to create the
// table.
func NewPostgres(db Commander, opts ...Option) *Postgres {
	o := buildOptions(opts)
	return &Postgres{
		db:    db,
		table: pgx.Identifier{o.table}.Sanitize(),
		clock: o.clock,
	}
}

func (p *Postgres) sql(format string) string {
	return fmt.Sprintf(format, p.table)
}

// Migrate creates the registrations table if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, p.sql(createTable)); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Get returns the registration for id.
func (p *Postgres) Get(ctx context.Context, id string) (*Registration, error) {
	var (
		reg     Registration
		typ     string
		algo    string
		digits  int32
		period  int32
		counter int64
	)
	err := p.db.QueryRow(ctx, p.sql(selectRow), id).Scan(
		&reg.AccountID, &reg.Secret, &typ, &algo, &digits, &period, &counter,
		&reg.Issuer, &reg.Name, &reg.CreatedAt, &reg.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: select registration: %w", err)
	}

	reg.Type = otp.Type(typ)
	reg.Algorithm = otp.Algorithm(algo)
	reg.Digits = int(digits)
	reg.Period = uint(period)
	reg.Counter = uint64(counter)
	return &reg, nil
}

// Put creates or replaces reg. The creation time of an existing row is kept.
func (p *Postgres) Put(ctx context.Context, reg *Registration) error {
	if err := reg.validate(); err != nil {
		return err
	}
	if reg.Counter > math.MaxInt64 {
		return fmt.Errorf("%w: counter exceeds bigint range", ErrInvalidRegistration)
	}
	if reg.Period > math.MaxInt32 || reg.Digits > math.MaxInt32 || reg.Digits < 0 {
		return fmt.Errorf("%w: digits or period out of range", ErrInvalidRegistration)
	}

	now := p.clock.Now().UTC()
	_, err := p.db.Exec(ctx, p.sql(upsertRow),
		reg.AccountID, reg.Secret, string(reg.Type), string(reg.Algorithm),
		int32(reg.Digits), int32(reg.Period), int64(reg.Counter),
		reg.Issuer, reg.Name, now,
	)
	if err != nil {
		return fmt.Errorf("store: upsert registration: %w", err)
	}
	return nil
}

// Delete removes the registration for id.
func (p *Postgres) Delete(ctx context.Context, id string) error {
	tag, err := p.db.Exec(ctx, p.sql(deleteRow), id)
	if err != nil {
		return fmt.Errorf("store: delete registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AdvanceCounter raises the stored counter of id to next. The comparison
// runs in the UPDATE itself so of two concurrent advances to the same value
// only one succeeds.
func (p *Postgres) AdvanceCounter(ctx context.Context, id string, next uint64) error {
	if next > math.MaxInt64 {
		return fmt.Errorf("%w: counter exceeds bigint range", ErrInvalidRegistration)
	}

	tag, err := p.db.Exec(ctx, p.sql(advanceRow), id, int64(next), p.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: advance counter: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := p.db.QueryRow(ctx, p.sql(existsRow), id).Scan(&exists); err != nil {
		return fmt.Errorf("store: advance counter: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStaleCounter
}

// Close closes the pool when the store owns it.
func (p *Postgres) Close() error {
	if p.closer != nil {
		p.closer()
	}
	return nil
}
