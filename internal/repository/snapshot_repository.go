// Package repository provides data access implementations
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/abelzeko/riverstats/internal/entities"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// MemoryDSN keeps the store in process memory; nothing survives a restart
const MemoryDSN = "file:riverstats?mode=memory&cache=shared"

// cycleRetention bounds how long refresh cycle ids are kept
const cycleRetention = 7 * 24 * time.Hour

// ErrNotFound is returned when no snapshot exists yet
var ErrNotFound = errors.New("snapshot not found")

// SnapshotRepository defines the persistence operations for refresh results
type SnapshotRepository interface {
	SaveBoard(ctx context.Context, board entities.Board) error
	GetBoard(ctx context.Context) (entities.Board, error)
	GetReservoirReport(ctx context.Context, id string) (entities.ReservoirReport, error)
	GetSiteSnapshot(ctx context.Context, siteNo string) (entities.SiteSnapshot, error)
	GetLastUpdateTime(ctx context.Context) (time.Time, error)
	Close() error
}

// SQLiteSnapshotRepository implements SnapshotRepository using SQLite
type SQLiteSnapshotRepository struct {
	db     *sqlx.DB
	DBPath string
}

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS refresh_cycles (
		id TEXT PRIMARY KEY,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS reservoir_reports (
		reservoir TEXT PRIMARY KEY,
		cycle_id TEXT NOT NULL,
		fetched_at DATETIME NOT NULL,
		available INTEGER NOT NULL,
		payload TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS site_snapshots (
		site TEXT PRIMARY KEY,
		cycle_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		title TEXT NOT NULL,
		image_url TEXT,
		page_url TEXT,
		value REAL,
		observed_at DATETIME,
		level TEXT NOT NULL,
		label TEXT NOT NULL,
		message TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_cycle_updated ON refresh_cycles(updated_at);`

type cycleRow struct {
	ID        string    `db:"id"`
	UpdatedAt time.Time `db:"updated_at"`
}

type reportRow struct {
	Reservoir string    `db:"reservoir"`
	CycleID   string    `db:"cycle_id"`
	FetchedAt time.Time `db:"fetched_at"`
	Available bool      `db:"available"`
	Payload   string    `db:"payload"`
}

type siteRow struct {
	Site       string          `db:"site"`
	CycleID    string          `db:"cycle_id"`
	Position   int             `db:"position"`
	Title      string          `db:"title"`
	ImageURL   string          `db:"image_url"`
	PageURL    string          `db:"page_url"`
	Value      sql.NullFloat64 `db:"value"`
	ObservedAt sql.NullTime    `db:"observed_at"`
	Level      string          `db:"level"`
	Label      string          `db:"label"`
	Message    string          `db:"message"`
}

// NewSQLiteSnapshotRepository opens the store. An empty dbPath uses MemoryDSN.
func NewSQLiteSnapshotRepository(dbPath string) (*SQLiteSnapshotRepository, error) {
	dsn := dbPath
	if dsn == "" {
		dsn = MemoryDSN
	} else if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	log.Printf("Opening database at %s", dsn)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps a shared in-memory database alive and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteSnapshotRepository{
		db:     db,
		DBPath: dsn,
	}, nil
}

// Close closes the database connection
func (r *SQLiteSnapshotRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveBoard replaces the stored snapshot with the results of one refresh cycle
func (r *SQLiteSnapshotRepository) SaveBoard(ctx context.Context, board entities.Board) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx,
		`INSERT INTO refresh_cycles(id, updated_at) VALUES(:id, :updated_at)`,
		cycleRow{ID: board.CycleID, UpdatedAt: board.UpdatedAt.UTC()}); err != nil {
		return fmt.Errorf("failed to insert refresh cycle %s: %w", board.CycleID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM refresh_cycles WHERE updated_at < ?`,
		board.UpdatedAt.UTC().Add(-cycleRetention)); err != nil {
		return fmt.Errorf("failed to prune refresh cycles: %w", err)
	}

	for _, report := range board.Reservoirs {
		payload, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("failed to encode report for %s: %w", report.Reservoir, err)
		}
		row := reportRow{
			Reservoir: report.Reservoir,
			CycleID:   board.CycleID,
			FetchedAt: report.FetchedAt.UTC(),
			Available: report.Available,
			Payload:   string(payload),
		}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO reservoir_reports(reservoir, cycle_id, fetched_at, available, payload)
			VALUES(:reservoir, :cycle_id, :fetched_at, :available, :payload)
			ON CONFLICT(reservoir) DO UPDATE SET
			cycle_id=excluded.cycle_id,
			fetched_at=excluded.fetched_at,
			available=excluded.available,
			payload=excluded.payload`, row); err != nil {
			return fmt.Errorf("failed to save report for %s: %w", report.Reservoir, err)
		}
	}

	// Reservoirs and sites dropped from configuration disappear with the next cycle
	if _, err := tx.ExecContext(ctx, `DELETE FROM reservoir_reports WHERE cycle_id != ?`, board.CycleID); err != nil {
		return fmt.Errorf("failed to prune reservoir reports: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM site_snapshots`); err != nil {
		return fmt.Errorf("failed to clear site snapshots: %w", err)
	}
	for i, s := range board.Sites {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO site_snapshots(site, cycle_id, position, title, image_url, page_url, value, observed_at, level, label, message)
			VALUES(:site, :cycle_id, :position, :title, :image_url, :page_url, :value, :observed_at, :level, :label, :message)`,
			toSiteRow(board.CycleID, i, s)); err != nil {
			return fmt.Errorf("failed to save snapshot for site %s: %w", s.Graph.SiteNo, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Printf("Saved refresh cycle %s: %d reservoirs, %d sites", board.CycleID, len(board.Reservoirs), len(board.Sites))
	return nil
}

// GetBoard returns the latest stored snapshot
func (r *SQLiteSnapshotRepository) GetBoard(ctx context.Context) (entities.Board, error) {
	var cycle cycleRow
	err := r.db.GetContext(ctx, &cycle, `SELECT id, updated_at FROM refresh_cycles ORDER BY updated_at DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Board{}, ErrNotFound
	}
	if err != nil {
		return entities.Board{}, fmt.Errorf("failed to query last refresh cycle: %w", err)
	}

	board := entities.Board{CycleID: cycle.ID, UpdatedAt: cycle.UpdatedAt}

	var reports []reportRow
	if err := r.db.SelectContext(ctx, &reports, `SELECT * FROM reservoir_reports ORDER BY reservoir`); err != nil {
		return entities.Board{}, fmt.Errorf("failed to query reservoir reports: %w", err)
	}
	for _, row := range reports {
		report, err := decodeReport(row)
		if err != nil {
			return entities.Board{}, err
		}
		board.Reservoirs = append(board.Reservoirs, report)
	}

	var sites []siteRow
	if err := r.db.SelectContext(ctx, &sites, `SELECT * FROM site_snapshots ORDER BY position`); err != nil {
		return entities.Board{}, fmt.Errorf("failed to query site snapshots: %w", err)
	}
	for _, row := range sites {
		board.Sites = append(board.Sites, fromSiteRow(row))
	}

	return board, nil
}

// GetReservoirReport retrieves the latest report for a reservoir
func (r *SQLiteSnapshotRepository) GetReservoirReport(ctx context.Context, id string) (entities.ReservoirReport, error) {
	var row reportRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM reservoir_reports WHERE reservoir = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.ReservoirReport{}, ErrNotFound
	}
	if err != nil {
		return entities.ReservoirReport{}, fmt.Errorf("failed to query report for %s: %w", id, err)
	}
	return decodeReport(row)
}

// GetSiteSnapshot retrieves the latest snapshot for a site
func (r *SQLiteSnapshotRepository) GetSiteSnapshot(ctx context.Context, siteNo string) (entities.SiteSnapshot, error) {
	var row siteRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM site_snapshots WHERE site = ?`, siteNo)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.SiteSnapshot{}, ErrNotFound
	}
	if err != nil {
		return entities.SiteSnapshot{}, fmt.Errorf("failed to query snapshot for site %s: %w", siteNo, err)
	}
	return fromSiteRow(row), nil
}

// GetLastUpdateTime retrieves the time of the latest refresh cycle
func (r *SQLiteSnapshotRepository) GetLastUpdateTime(ctx context.Context) (time.Time, error) {
	var lastUpdate time.Time
	err := r.db.GetContext(ctx, &lastUpdate, `SELECT updated_at FROM refresh_cycles ORDER BY updated_at DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query last update time: %w", err)
	}
	return lastUpdate, nil
}

func decodeReport(row reportRow) (entities.ReservoirReport, error) {
	var report entities.ReservoirReport
	if err := json.Unmarshal([]byte(row.Payload), &report); err != nil {
		return entities.ReservoirReport{}, fmt.Errorf("failed to decode report for %s: %w", row.Reservoir, err)
	}
	return report, nil
}

func toSiteRow(cycleID string, position int, s entities.SiteSnapshot) siteRow {
	row := siteRow{
		Site:     s.Graph.SiteNo,
		CycleID:  cycleID,
		Position: position,
		Title:    s.Graph.Title,
		ImageURL: s.Graph.ImageURL,
		PageURL:  s.Graph.PageURL,
		Level:    string(s.Status.Level),
		Label:    s.Status.Label,
		Message:  s.Status.Message,
	}
	if s.Reading.Value != nil {
		row.Value = sql.NullFloat64{Float64: *s.Reading.Value, Valid: true}
	}
	if !s.Reading.ObservedAt.IsZero() {
		row.ObservedAt = sql.NullTime{Time: s.Reading.ObservedAt.UTC(), Valid: true}
	}
	return row
}

func fromSiteRow(row siteRow) entities.SiteSnapshot {
	snap := entities.SiteSnapshot{
		Graph: entities.SiteGraph{
			SiteNo:   row.Site,
			Title:    row.Title,
			ImageURL: row.ImageURL,
			PageURL:  row.PageURL,
		},
		Reading: entities.SiteReading{SiteNo: row.Site},
		Status: entities.Status{
			Site:    row.Site,
			Level:   entities.StatusLevel(row.Level),
			Label:   row.Label,
			Message: row.Message,
		},
	}
	if row.Value.Valid {
		snap.Reading.Value = entities.Float(row.Value.Float64)
	}
	if row.ObservedAt.Valid {
		snap.Reading.ObservedAt = row.ObservedAt.Time
	}
	return snap
}
