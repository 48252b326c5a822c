package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/swarm.forage/internal/entity"
	"github.com/banshee-data/swarm.forage/internal/metrics"
)

// ErrNoRun is returned when a run id is unknown.
var ErrNoRun = errors.New("no such run")

// Run is one simulation run.
type Run struct {
	ID         string
	StartedAt  string // sqlite CURRENT_TIMESTAMP, UTC
	Robots     int
	Caching    string
	Perception string
	ConfigJSON string
	Timesteps  uint64
	Collected  uint64
}

// InsertRun records r and returns its id. An empty r.ID gets a fresh
// uuid.
func (db *DB) InsertRun(r *Run) (string, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.ConfigJSON == "" {
		r.ConfigJSON = "{}"
	}
	_, err := db.Exec(
		`INSERT INTO runs (run_id, robots, caching, perception, config_json) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Robots, r.Caching, r.Perception, r.ConfigJSON,
	)
	if err != nil {
		return "", fmt.Errorf("insert run %s: %w", r.ID, err)
	}
	return r.ID, nil
}

// FinishRun stores the final totals of a run.
func (db *DB) FinishRun(runID string, timesteps, collected uint64) error {
	res, err := db.Exec(`UPDATE runs SET timesteps = ?, collected = ? WHERE run_id = ?`, timesteps, collected, runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrNoRun)
	}
	return nil
}

// InsertSnapshots stores snaps in one transaction.
func (db *DB) InsertSnapshots(runID string, snaps []metrics.Snapshot) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO snapshots (
			run_id, timestep, collected, known_pct, unknown_pct, caches_live,
			caches_created, caches_depleted, dist_enabled, generalists,
			harvesters, collectors, carrying
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range snaps {
		if _, err := stmt.Exec(
			runID, s.Timestep, s.Collected, s.KnownPct, s.UnknownPct, s.CachesLive,
			s.CachesCreated, s.CachesDepleted, s.DistEnabled, s.Generalists,
			s.Harvesters, s.Collectors, s.Carrying,
		); err != nil {
			return fmt.Errorf("insert snapshot t=%d: %w", s.Timestep, err)
		}
	}
	return tx.Commit()
}

// InsertCacheLifetimes stores the depleted caches of a run.
func (db *DB) InsertCacheLifetimes(runID string, ls []metrics.CacheLifetime) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO cache_lifetimes (run_id, kind, cache_id, created_at, depleted_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, l := range ls {
		if _, err := stmt.Exec(runID, l.Kind, l.CacheID, l.CreatedAt, l.DepletedAt); err != nil {
			return fmt.Errorf("insert lifetime of cache %d: %w", l.CacheID, err)
		}
	}
	return tx.Commit()
}

// ListRuns returns the most recent runs first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	rows, err := db.Query(`SELECT run_id, started_at, robots, caching, perception, config_json, timesteps, collected
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.Robots, &r.Caching, &r.Perception, &r.ConfigJSON, &r.Timesteps, &r.Collected); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// LatestRunID returns the id of the most recent run.
func (db *DB) LatestRunID() (string, error) {
	var id string
	err := db.QueryRow(`SELECT run_id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoRun
	}
	return id, err
}

// Snapshots returns the snapshots of runID in timestep order.
func (db *DB) Snapshots(runID string) ([]metrics.Snapshot, error) {
	rows, err := db.Query(`SELECT timestep, collected, known_pct, unknown_pct, caches_live,
			caches_created, caches_depleted, dist_enabled, generalists,
			harvesters, collectors, carrying
		FROM snapshots WHERE run_id = ? ORDER BY timestep`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []metrics.Snapshot
	for rows.Next() {
		var s metrics.Snapshot
		if err := rows.Scan(&s.Timestep, &s.Collected, &s.KnownPct, &s.UnknownPct, &s.CachesLive,
			&s.CachesCreated, &s.CachesDepleted, &s.DistEnabled, &s.Generalists,
			&s.Harvesters, &s.Collectors, &s.Carrying); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CacheLifetimes returns the depleted caches of runID.
func (db *DB) CacheLifetimes(runID string) ([]metrics.CacheLifetime, error) {
	rows, err := db.Query(`SELECT kind, cache_id, created_at, depleted_at
		FROM cache_lifetimes WHERE run_id = ? ORDER BY depleted_at, cache_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []metrics.CacheLifetime
	for rows.Next() {
		var (
			l  metrics.CacheLifetime
			id int64
		)
		if err := rows.Scan(&l.Kind, &id, &l.CreatedAt, &l.DepletedAt); err != nil {
			return nil, err
		}
		l.CacheID = entity.ID(id)
		out = append(out, l)
	}
	return out, rows.Err()
}
