// Package store owns the relational schema and the repositories over
// it. Repository methods are the only sanctioned writers; handlers
// never issue raw SQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/mnehmos/questforge/internal/rpgerr"
)

// Store wraps the sqlite handle and exposes one repository per entity
// family.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	Worlds     *WorldRepo
	Characters *CharacterRepo
	Items      *ItemRepo
	Inventory  *InventoryRepo
	Encounters *EncounterRepo
	Quests     *QuestRepo
	QuestLogs  *QuestLogRepo
	Theft      *TheftRepo
	Fences     *FenceRepo
	Effects    *EffectRepo
	Spells     *SpellRepo
	Patches    *PatchRepo
	TurnState  *TurnStateRepo
	Logs       *LogRepo
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an ephemeral store under test.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite requires a single writer; serialize access through one
	// connection so cross-session mutations queue at the store.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db, logger: slog.Default().With("component", "store")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	s.Worlds = &WorldRepo{s: s}
	s.Characters = &CharacterRepo{s: s}
	s.Items = &ItemRepo{s: s}
	s.Inventory = &InventoryRepo{s: s}
	s.Encounters = &EncounterRepo{s: s}
	s.Quests = &QuestRepo{s: s}
	s.QuestLogs = &QuestLogRepo{s: s}
	s.Theft = &TheftRepo{s: s}
	s.Fences = &FenceRepo{s: s}
	s.Effects = &EffectRepo{s: s}
	s.Spells = &SpellRepo{s: s}
	s.Patches = &PatchRepo{s: s}
	s.TurnState = &TurnStateRepo{s: s}
	s.Logs = &LogRepo{s: s}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// WithTx runs fn inside a transaction. fn must not suspend on anything
// but the transaction itself; the closure either commits fully or
// rolls back with no partial state observable.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "begin transaction")
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.logger.Warn("transaction rollback failed", "error", err)
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "commit transaction")
	}
	return nil
}

// querier abstracts *sql.DB and *sql.Tx so repository helpers can run
// inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
