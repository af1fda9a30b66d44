package dbstore

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/platzio/platz/internal/perr"
)

// GetSetting fetches a Setting by key.
func (s *Store) GetSetting(ctx context.Context, key string) (*Setting, error) {
	var out Setting
	q, args := mustSQL(psql.Select("*").From("settings").Where(sq.Eq{"key": key}))
	if err := s.db.GetContext(ctx, &out, q, args...); err != nil {
		return nil, requireRow(err, "setting %s not found", key)
	}
	return &out, nil
}

// GetOrSetDefault reads the setting for key, or inserts def and returns
// it if absent. This is the process-wide `Setting` read-through pattern
// spec.md §5 names for the JWT/token secret: concurrent callers racing
// to initialize the same key all converge on whichever value won the
// insert, via ON CONFLICT DO NOTHING followed by a re-read.
func (s *Store) GetOrSetDefault(ctx context.Context, key string, def string) (string, error) {
	var out Setting
	err := s.tx(ctx, func(tx *sqlx.Tx) error {
		q, args := mustSQL(psql.Insert("settings").
			Columns("key", "value").
			Values(key, def).
			Suffix("ON CONFLICT (key) DO NOTHING"))
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return perr.Wrap(err, perr.DatabaseError, "initializing setting %s", key)
		}
		gq, gargs := mustSQL(psql.Select("*").From("settings").Where(sq.Eq{"key": key}))
		return tx.GetContext(ctx, &out, gq, gargs...)
	})
	if err != nil {
		return "", perr.Wrap(err, perr.DatabaseError, "reading setting %s", key)
	}
	return out.Value, nil
}

// SetSetting overwrites a setting's value unconditionally.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	q, args := mustSQL(psql.Insert("settings").
		Columns("key", "value").
		Values(key, value).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value"))
	_, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return perr.Wrap(err, perr.DatabaseError, "setting %s", key)
	}
	s.publish(ChangeEvent{Operation: OpUpdate, Table: "settings", ID: key})
	return nil
}
