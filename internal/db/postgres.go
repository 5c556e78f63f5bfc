// Package db persists the mapped database and resynthesis-run history
// to PostgreSQL via pgx: a pgxpool connection with transactional writes
// over the canonical_rows/database_entries/resynth_runs/pass_events
// schema.
package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/resynth-engine/internal/chain"
	"github.com/rawblock/resynth-engine/internal/config"
	"github.com/rawblock/resynth-engine/internal/database"
	"github.com/rawblock/resynth-engine/internal/resynth"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx.
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}

	log.Println("Successfully connected to PostgreSQL for Resynthesis Engine")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema loads and executes the schema.sql file.
func (s *PostgresStore) InitSchema() error {
	schemaBytes, err := os.ReadFile("internal/db/schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %v", err)
	}

	_, err = s.pool.Exec(context.Background(), string(schemaBytes))
	if err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}

	log.Println("Resynthesis database schema initialized")
	return nil
}

// SaveEntry persists one Pareto-front entry under its canonical row,
// upserting the row by reprKey first inside one transaction.
func (s *PostgresStore) SaveEntry(ctx context.Context, reprKey string, e database.Entry, c chain.Chain) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var rowID int
	upsertRowSQL := `
		INSERT INTO canonical_rows (repr_key) VALUES ($1)
		ON CONFLICT (repr_key) DO UPDATE SET repr_key = EXCLUDED.repr_key
		RETURNING id;
	`
	if err := tx.QueryRow(ctx, upsertRowSQL, reprKey).Scan(&rowID); err != nil {
		return fmt.Errorf("failed to upsert canonical_rows: %v", err)
	}

	delaysJSON, err := json.Marshal(e.Delays)
	if err != nil {
		return fmt.Errorf("failed to marshal delays: %v", err)
	}
	chainJSON, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal chain: %v", err)
	}

	insertEntrySQL := `
		INSERT INTO database_entries (row_id, area, switches, delays, chain)
		VALUES ($1, $2, $3, $4, $5);
	`
	if _, err := tx.Exec(ctx, insertEntrySQL, rowID, e.Area, e.Switches, delaysJSON, chainJSON); err != nil {
		return fmt.Errorf("failed to insert database_entries: %v", err)
	}

	return tx.Commit(ctx)
}

// LoadRows reconstructs every persisted chain, in row then insertion
// order, ready to be replayed through database.Add.
func (s *PostgresStore) LoadRows(ctx context.Context) ([]chain.Chain, error) {
	sql := `
		SELECT de.chain
		FROM database_entries de
		JOIN canonical_rows cr ON cr.id = de.row_id
		ORDER BY cr.id, de.id;
	`
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chains []chain.Chain
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var c chain.Chain
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("failed to unmarshal persisted chain: %v", err)
		}
		chains = append(chains, c)
	}
	return chains, rows.Err()
}

// SaveRunSummary upserts a resynthesis run's status and final stats.
func (s *PostgresStore) SaveRunSummary(ctx context.Context, runID string, cfg config.Config, status string, stats *resynth.Stats, runErr error) error {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %v", err)
	}
	var statsJSON []byte
	if stats != nil {
		statsJSON, err = json.Marshal(stats)
		if err != nil {
			return fmt.Errorf("failed to marshal stats: %v", err)
		}
	}
	var errText *string
	if runErr != nil {
		s := runErr.Error()
		errText = &s
	}

	sql := `
		INSERT INTO resynth_runs (id, config, status, stats, error)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			stats = EXCLUDED.stats,
			error = EXCLUDED.error,
			updated_at = NOW();
	`
	_, err = s.pool.Exec(ctx, sql, runID, cfgJSON, status, statsJSON, errText)
	return err
}

// AppendPassEvent records one pivot's outcome during a run, giving the
// websocket hub's PassProgress/SubstitutionAlert broadcasts a durable
// trail independent of the in-memory session manager.
func (s *PostgresStore) AppendPassEvent(ctx context.Context, runID string, pr resynth.PivotResult) error {
	sql := `
		INSERT INTO pass_events (run_id, pivot, state, reward, kind)
		VALUES ($1, $2, $3, $4, $5);
	`
	_, err := s.pool.Exec(ctx, sql, runID, int(pr.Pivot), pr.State.String(), pr.Reward, pr.Kind.String())
	return err
}

// GetPool exposes the connection pool for subsystems that need raw
// access (e.g. a future migration tool).
func (s *PostgresStore) GetPool() *pgxpool.Pool {
	return s.pool
}
