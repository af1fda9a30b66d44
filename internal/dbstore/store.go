package dbstore

import (
	"context"
	"database/sql"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/platzio/platz/internal/perr"
	"github.com/platzio/platz/internal/platzlog"
)

// Operation is the kind of row mutation a Store commit publishes
// (spec.md §4.1, §6).
type Operation string

const (
	OpInsert Operation = "Insert"
	OpUpdate Operation = "Update"
	OpDelete Operation = "Delete"
)

// ChangeEvent is the payload the database's NOTIFY channel carries and
// the Event Bus fans out (spec.md §6: "{operation, table, data:{id}}").
type ChangeEvent struct {
	Operation Operation `json:"operation"`
	Table     string    `json:"table"`
	ID        string    `json:"id"`
}

// Notifier is implemented by internal/eventbus.Bus; Store depends on the
// narrow Publish method only, so it never needs to know about
// subscribers, reconnect supervision, or channel capacity.
type Notifier interface {
	Publish(ev ChangeEvent)
}

// Store is the persistent relational backing for every entity in
// spec.md §3 (§4.1). Every mutating method runs in a single transaction
// and, on commit, publishes a ChangeEvent through the configured
// Notifier -- the Go-level analog of the Postgres NOTIFY the teacher's
// storage layer would otherwise rely on a separate LISTEN client for.
type Store struct {
	db       *sqlx.DB
	notifier Notifier
	platzlog.LogHolder
}

// squirrel statement builder configured for Postgres's $1-style
// placeholders, shared by every query method in this package.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Open connects to databaseURL and wraps the pool as a Store. The
// returned Store does not publish change events until SetNotifier is
// called; internal/eventbus wires itself in at daemon startup.
func Open(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, perr.Wrap(err, perr.DatabaseError, "connecting to database")
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	s := &Store{db: db}
	s.SetLogger(platzlog.NewHandler(platzlog.EnvDebugEnabled).WithAttrs([]slog.Attr{slog.String("component", "store")}))
	return s, nil
}

// SetNotifier installs the Event Bus as this Store's change-event sink.
func (s *Store) SetNotifier(n Notifier) { s.notifier = n }

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the raw *sqlx.DB for callers that need the underlying pool
// directly (the migrate command hands its *sql.DB to the migration
// runner).
func (s *Store) DB() *sqlx.DB { return s.db }

// publish fires ev through the Notifier, if any, after a successful commit.
func (s *Store) publish(ev ChangeEvent) {
	if s.notifier != nil {
		s.notifier.Publish(ev)
	}
	s.Logger().Debug("row changed", "operation", ev.Operation, "table", ev.Table, "id", ev.ID)
}

// tx runs fn inside a transaction, committing on nil error and rolling
// back otherwise. Every Store mutation method is built on top of this.
func (s *Store) tx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return perr.Wrap(err, perr.DatabaseError, "beginning transaction")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return perr.Wrap(rbErr, perr.DatabaseError, "rolling back after: %v", err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return perr.Wrap(err, perr.DatabaseError, "committing transaction")
	}
	return nil
}

// translateConstraintErr maps a Postgres foreign-key/unique violation to
// perr.ConflictError; any other error passes through as DatabaseError.
func translateConstraintErr(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if isConstraintViolation(err) {
		return perr.Wrap(err, perr.ConflictError, format, args...)
	}
	return perr.Wrap(err, perr.DatabaseError, format, args...)
}

// isConstraintViolation reports whether err is a Postgres integrity
// constraint violation (SQLSTATE class 23).
func isConstraintViolation(err error) bool {
	type pqError interface{ SQLState() string }
	var pe pqError
	for e := err; e != nil; e = errors.Unwrap(e) {
		if p, ok := e.(pqError); ok {
			pe = p
			break
		}
	}
	if pe == nil {
		return false
	}
	state := pe.SQLState()
	return len(state) >= 2 && state[:2] == "23"
}

// isNoRows reports whether err is (or wraps) sql.ErrNoRows, for callers
// that want to treat "nothing matched" as a non-error control path (e.g.
// ClaimNextTask losing a race) rather than as perr.NotFound.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// requireRow maps sql.ErrNoRows to perr.NotFound; every Get* method
// funnels its final row lookup through this.
func requireRow(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if isNoRows(err) {
		return perr.Wrap(err, perr.NotFound, format, args...)
	}
	return perr.Wrap(err, perr.DatabaseError, format, args...)
}
