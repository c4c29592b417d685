// Package bunstore provides a SQL-backed state store for deployments that
// scale past a single instance, where the default process-local MemoryStore
// would make a state minted on one instance invisible to another.
package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tbeaumont/go-stateguard"
	"github.com/uptrace/bun"
)

// StateModel is the Bun model for in-flight OAuth states.
type StateModel struct {
	bun.BaseModel `bun:"table:oauth_states"`

	Token       string    `bun:"token,pk"`
	Provider    string    `bun:"provider,notnull"`
	CallbackURL string    `bun:"callback_url"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
}

// Store implements stateguard.Store using Bun.
type Store struct {
	db *bun.DB
}

// New creates a new store.
func New(db *bun.DB) *Store {
	return &Store{db: db}
}

// CreateTable creates the backing table if it does not exist.
func (s *Store) CreateTable(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*StateModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// Insert implements stateguard.Store. A conflicting token is reported as
// inserted=false so the guard mints a fresh one.
func (s *Store) Insert(ctx context.Context, entry stateguard.StateEntry) (bool, error) {
	res, err := s.db.NewInsert().
		Model(&StateModel{
			Token:       entry.Token,
			Provider:    entry.Provider,
			CallbackURL: entry.CallbackURL,
			CreatedAt:   entry.CreatedAt,
		}).
		Ignore().
		Exec(ctx)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows == 1, nil
}

// Take implements stateguard.Store. The delete-returning form keeps the
// read+remove atomic across competing instances.
func (s *Store) Take(ctx context.Context, token string) (stateguard.StateEntry, bool, error) {
	model := new(StateModel)
	err := s.db.NewDelete().
		Model(model).
		Where("token = ?", token).
		Returning("*").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return stateguard.StateEntry{}, false, nil
		}
		return stateguard.StateEntry{}, false, err
	}

	return stateguard.StateEntry{
		Token:       model.Token,
		Provider:    model.Provider,
		CallbackURL: model.CallbackURL,
		CreatedAt:   model.CreatedAt,
	}, true, nil
}

// SweepExpired implements stateguard.Store.
func (s *Store) SweepExpired(ctx context.Context, now time.Time, threshold time.Duration) (int, error) {
	res, err := s.db.NewDelete().
		Model((*StateModel)(nil)).
		Where("created_at < ?", now.Add(-threshold)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(rows), nil
}

// Len implements stateguard.Store.
func (s *Store) Len(ctx context.Context) (int, error) {
	return s.db.NewSelect().
		Model((*StateModel)(nil)).
		Count(ctx)
}
