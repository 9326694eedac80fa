package store

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jeremyhahn/go-twofactor/pkg/clock"
	"github.com/jeremyhahn/go-twofactor/pkg/otp"
)

type fakeRow func(dest ...any) error

func (r fakeRow) Scan(dest ...any) error { return r(dest...) }

type execCall struct {
	sql  string
	args []any
}

type fakeCommander struct {
	tags    []string
	execErr error
	rows    []fakeRow
	execs   []execCall
	queries []string
}

func (f *fakeCommander) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	tag := "UPDATE 0"
	if len(f.tags) > 0 {
		tag, f.tags = f.tags[0], f.tags[1:]
	}
	return pgconn.NewCommandTag(tag), nil
}

func (f *fakeCommander) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	f.queries = append(f.queries, sql)
	if len(f.rows) == 0 {
		return fakeRow(func(...any) error { return pgx.ErrNoRows })
	}
	row := f.rows[0]
	f.rows = f.rows[1:]
	return row
}

func TestPostgresSanitizesTable(t *testing.T) {
	db := &fakeCommander{}
	p := NewPostgres(db, WithTable(`otp"; drop table users; --`))

	if err := p.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate error: %v", err)
	}
	want := `"otp""; drop table users; --"`
	if !strings.Contains(db.execs[0].sql, "create table if not exists "+want) {
		t.Errorf("unexpected migrate sql: %s", db.execs[0].sql)
	}
}

func TestPostgresGet(t *testing.T) {
	created := testTime.Add(-time.Hour)
	db := &fakeCommander{rows: []fakeRow{func(dest ...any) error {
		*dest[0].(*string) = "alice"
		*dest[1].(*string) = "JBSWY3DPEHPK3PXP"
		*dest[2].(*string) = "hotp"
		*dest[3].(*string) = "SHA1"
		*dest[4].(*int32) = 6
		*dest[5].(*int32) = 0
		*dest[6].(*int64) = 7
		*dest[7].(*string) = "ACME"
		*dest[8].(*string) = "alice@example.com"
		*dest[9].(*time.Time) = created
		*dest[10].(*time.Time) = testTime
		return nil
	}}}
	p := NewPostgres(db)

	got, err := p.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	want := &Registration{
		AccountID: "alice",
		Secret:    "JBSWY3DPEHPK3PXP",
		Type:      otp.TypeHOTP,
		Algorithm: otp.AlgorithmSHA1,
		Digits:    6,
		Counter:   7,
		Issuer:    "ACME",
		Name:      "alice@example.com",
		CreatedAt: created,
		UpdatedAt: testTime,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}
}

func TestPostgresGetErrors(t *testing.T) {
	ctx := context.Background()

	p := NewPostgres(&fakeCommander{})
	if _, err := p.Get(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	boom := errors.New("connection reset")
	p = NewPostgres(&fakeCommander{rows: []fakeRow{func(...any) error { return boom }}})
	if _, err := p.Get(ctx, "alice"); !errors.Is(err, boom) {
		t.Errorf("expected wrapped driver error, got %v", err)
	}
}

func TestPostgresPut(t *testing.T) {
	db := &fakeCommander{tags: []string{"INSERT 0 1"}}
	p := NewPostgres(db, WithClock(clock.Fixed(testTime)))

	if err := p.Put(context.Background(), testRegistration("alice")); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if len(db.execs) != 1 {
		t.Fatalf("expected 1 exec, got %d", len(db.execs))
	}
	want := []any{
		"alice", "JBSWY3DPEHPK3PXP", "hotp", "SHA1",
		int32(6), int32(0), int64(3),
		"ACME", "alice@example.com", testTime,
	}
	if diff := cmp.Diff(want, db.execs[0].args); diff != "" {
		t.Errorf("Put args mismatch (-want +got):\n%s", diff)
	}
}

func TestPostgresPutInvalid(t *testing.T) {
	tooBig := testRegistration("alice")
	tooBig.Counter = math.MaxInt64 + 1
	negDigits := testRegistration("alice")
	negDigits.Digits = -1
	noSecret := testRegistration("alice")
	noSecret.Secret = " "

	tests := []struct {
		name string
		reg  *Registration
	}{
		{"nil", nil},
		{"counter overflow", tooBig},
		{"negative digits", negDigits},
		{"empty secret", noSecret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeCommander{}
			p := NewPostgres(db)
			if err := p.Put(context.Background(), tt.reg); !errors.Is(err, ErrInvalidRegistration) {
				t.Errorf("expected ErrInvalidRegistration, got %v", err)
			}
			if len(db.execs) != 0 {
				t.Errorf("expected no exec for invalid registration, got %d", len(db.execs))
			}
		})
	}
}

func TestPostgresDelete(t *testing.T) {
	ctx := context.Background()

	p := NewPostgres(&fakeCommander{tags: []string{"DELETE 1"}})
	if err := p.Delete(ctx, "alice"); err != nil {
		t.Errorf("Delete error: %v", err)
	}

	p = NewPostgres(&fakeCommander{tags: []string{"DELETE 0"}})
	if err := p.Delete(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func existsRowResult(exists bool) fakeRow {
	return func(dest ...any) error {
		*dest[0].(*bool) = exists
		return nil
	}
}

func TestPostgresAdvanceCounter(t *testing.T) {
	tests := []struct {
		name        string
		db          *fakeCommander
		next        uint64
		wantErr     error
		wantQueries int
	}{
		{
			name: "advanced",
			db:   &fakeCommander{tags: []string{"UPDATE 1"}},
			next: 5,
		},
		{
			name:        "stale counter keeps floor",
			db:          &fakeCommander{tags: []string{"UPDATE 0"}, rows: []fakeRow{existsRowResult(true)}},
			next:        2,
			wantErr:     ErrStaleCounter,
			wantQueries: 1,
		},
		{
			name:        "missing account",
			db:          &fakeCommander{tags: []string{"UPDATE 0"}, rows: []fakeRow{existsRowResult(false)}},
			next:        2,
			wantErr:     ErrNotFound,
			wantQueries: 1,
		},
		{
			name:    "overflow",
			db:      &fakeCommander{},
			next:    math.MaxInt64 + 1,
			wantErr: ErrInvalidRegistration,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPostgres(tt.db, WithClock(clock.Fixed(testTime)))
			err := p.AdvanceCounter(context.Background(), "alice", tt.next)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("AdvanceCounter error: %v", err)
			}
			if len(tt.db.queries) != tt.wantQueries {
				t.Errorf("expected %d exists queries, got %d", tt.wantQueries, len(tt.db.queries))
			}
		})
	}
}

func TestPostgresExecError(t *testing.T) {
	boom := errors.New("connection reset")
	p := NewPostgres(&fakeCommander{execErr: boom})
	ctx := context.Background()

	if err := p.Migrate(ctx); !errors.Is(err, boom) {
		t.Errorf("Migrate: expected wrapped error, got %v", err)
	}
	if err := p.Delete(ctx, "alice"); !errors.Is(err, boom) {
		t.Errorf("Delete: expected wrapped error, got %v", err)
	}
	if err := p.AdvanceCounter(ctx, "alice", 1); !errors.Is(err, boom) {
		t.Errorf("AdvanceCounter: expected wrapped error, got %v", err)
	}
}
