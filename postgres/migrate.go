package postgres

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationLockID serializes migration runs across processes sharing a database.
const migrationLockID = 0x636861745f6d6967

const ledgerDDL = `
CREATE TABLE IF NOT EXISTS chat_migrations (
	id         SERIAL PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	checksum   TEXT NOT NULL
);`

// Migration describes one embedded migration and whether it has been applied.
// Checksum is the sha256 of the embedded up script.
type Migration struct {
	Name      string
	Applied   bool
	AppliedAt *time.Time
	Checksum  string
}

// script is an up/down pair read from migrations/NAME.{up,down}.sql.
type script struct {
	name     string
	up, down string
	checksum string
}

type ledgerEntry struct {
	id        int
	appliedAt time.Time
	checksum  string
}

// scripts returns the embedded migrations sorted by name. Every up script
// must have a matching down script.
func scripts() ([]script, error) {
	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	if err != nil {
		return nil, err
	}

	out := make([]script, 0, len(ups))
	for _, upPath := range ups {
		name := strings.TrimSuffix(path.Base(upPath), ".up.sql")

		up, err := migrationsFS.ReadFile(upPath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", upPath, err)
		}
		down, err := migrationsFS.ReadFile("migrations/" + name + ".down.sql")
		if err != nil {
			return nil, fmt.Errorf("migration %s has no down script: %w", name, err)
		}

		sum := sha256.Sum256(up)
		out = append(out, script{
			name:     name,
			up:       string(up),
			down:     string(down),
			checksum: hex.EncodeToString(sum[:]),
		})
	}

	slices.SortFunc(out, func(a, b script) int { return strings.Compare(a.name, b.name) })
	return out, nil
}

// ledger reads chat_migrations inside tx, creating it first if needed.
func ledger(ctx context.Context, tx pgx.Tx) (map[string]ledgerEntry, error) {
	if _, err := tx.Exec(ctx, ledgerDDL); err != nil {
		return nil, fmt.Errorf("create ledger: %w", err)
	}

	rows, err := tx.Query(ctx, `SELECT id, name, applied_at, checksum FROM chat_migrations`)
	if err != nil {
		return nil, err
	}

	entries := make(map[string]ledgerEntry)
	var (
		name string
		e    ledgerEntry
	)
	_, err = pgx.ForEachRow(rows, []any{&e.id, &name, &e.appliedAt, &e.checksum}, func() error {
		entries[name] = e
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return entries, nil
}

// locked runs fn in a transaction holding the migration advisory lock.
func (s *PGStore) locked(ctx context.Context, fn func(tx pgx.Tx, applied map[string]ledgerEntry) error) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(migrationLockID)); err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		applied, err := ledger(ctx, tx)
		if err != nil {
			return err
		}
		return fn(tx, applied)
	})
}

// Migrate applies every pending migration in name order within one
// transaction. A previously applied migration whose script changed aborts the
// run before anything is applied.
func (s *PGStore) Migrate(ctx context.Context) error {
	all, err := scripts()
	if err != nil {
		return fmt.Errorf("chat: load migrations: %w", err)
	}

	err = s.locked(ctx, func(tx pgx.Tx, applied map[string]ledgerEntry) error {
		for _, m := range all {
			if e, ok := applied[m.name]; ok && e.checksum != m.checksum {
				return fmt.Errorf("migration %s was modified after it was applied (ledger %s, embedded %s)", m.name, e.checksum, m.checksum)
			}
		}

		for _, m := range all {
			if _, ok := applied[m.name]; ok {
				continue
			}
			if _, err := tx.Exec(ctx, m.up); err != nil {
				return fmt.Errorf("apply %s: %w", m.name, err)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO chat_migrations (name, checksum) VALUES ($1, $2)`, m.name, m.checksum); err != nil {
				return fmt.Errorf("record %s: %w", m.name, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("chat: migrate: %w", err)
	}
	return nil
}

// Rollback reverts the most recently applied migration.
func (s *PGStore) Rollback(ctx context.Context) error {
	all, err := scripts()
	if err != nil {
		return fmt.Errorf("chat: load migrations: %w", err)
	}

	err = s.locked(ctx, func(tx pgx.Tx, applied map[string]ledgerEntry) error {
		var (
			lastName string
			last     ledgerEntry
		)
		for name, e := range applied {
			if e.id > last.id {
				lastName, last = name, e
			}
		}
		if lastName == "" {
			return errors.New("no applied migrations to roll back")
		}

		i := slices.IndexFunc(all, func(m script) bool { return m.name == lastName })
		if i < 0 {
			return fmt.Errorf("migration %s is not embedded in this binary", lastName)
		}

		if _, err := tx.Exec(ctx, all[i].down); err != nil {
			return fmt.Errorf("revert %s: %w", lastName, err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM chat_migrations WHERE id = $1`, last.id); err != nil {
			return fmt.Errorf("unrecord %s: %w", lastName, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("chat: rollback: %w", err)
	}
	return nil
}

// MigrationStatus lists every embedded migration with its applied state.
func (s *PGStore) MigrationStatus(ctx context.Context) ([]Migration, error) {
	all, err := scripts()
	if err != nil {
		return nil, fmt.Errorf("chat: load migrations: %w", err)
	}

	out := make([]Migration, 0, len(all))
	err = s.locked(ctx, func(_ pgx.Tx, applied map[string]ledgerEntry) error {
		for _, m := range all {
			st := Migration{Name: m.name, Checksum: m.checksum}
			if e, ok := applied[m.name]; ok {
				at := e.appliedAt
				st.Applied = true
				st.AppliedAt = &at
			}
			out = append(out, st)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("chat: migration status: %w", err)
	}
	return out, nil
}
