package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"

	"demobet/internal/game"
)

// Service is the persistence collaborator: it durably records completed
// rounds and settled wagers keyed by round id. The game engine itself holds
// only bounded in-memory history and is not a system of record.
type Service interface {
	Health() map[string]string
	Close() error

	SaveRound(ctx context.Context, snap game.RoundSnapshot) error
	SaveWagers(ctx context.Context, roundID string, wagers []game.Wager) error
	RecentRounds(ctx context.Context, kind game.GameKind, limit int) ([]game.RoundSnapshot, error)
}

type service struct {
	db *sql.DB
}

var (
	database   = os.Getenv("BLUEPRINT_DB_DATABASE")
	password   = os.Getenv("BLUEPRINT_DB_PASSWORD")
	username   = os.Getenv("BLUEPRINT_DB_USERNAME")
	port       = os.Getenv("BLUEPRINT_DB_PORT")
	host       = os.Getenv("BLUEPRINT_DB_HOST")
	schema     = os.Getenv("BLUEPRINT_DB_SCHEMA")
	dbInstance *service
)

func New() Service {
	if dbInstance != nil {
		return dbInstance
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		username, password, host, port, database, schema)
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		log.Fatalf("[DB] Failed to open connection: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	dbInstance = &service{db: db}
	return dbInstance
}

// SaveRound records a completed round's public snapshot. Upserts on round id
// so a replayed completion event does not duplicate rows.
func (s *service) SaveRound(ctx context.Context, snap game.RoundSnapshot) error {
	stats, err := json.Marshal(snap.Stats)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rounds (id, kind, state, category, multiplier, winning_color, duration_ms, started_at, ended_at, stats)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, stats = EXCLUDED.stats`,
		snap.ID, string(snap.Kind), string(snap.State), string(snap.Category),
		snap.Multiplier, nullable(snap.WinningColor), snap.DurationMs,
		snap.StartedAt, snap.EndedAt, stats,
	)
	return err
}

// SaveWagers records the settled wagers of a completed round.
func (s *service) SaveWagers(ctx context.Context, roundID string, wagers []game.Wager) error {
	for _, w := range wagers {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO wagers (id, round_id, user_id, color, target_multiplier, stake, status, payout, profit, placed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO NOTHING`,
			w.ID, roundID, w.UserID, nullable(w.Color), w.TargetMultiplier,
			w.Stake, string(w.Status), w.Payout, w.Profit, w.PlacedAt,
		)
		if err != nil {
			return fmt.Errorf("save wager %s: %w", w.ID, err)
		}
	}
	return nil
}

// RecentRounds loads the most recently completed rounds of a kind.
func (s *service) RecentRounds(ctx context.Context, kind game.GameKind, limit int) ([]game.RoundSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, state, category, multiplier, COALESCE(winning_color, ''), duration_ms, started_at, ended_at
		FROM rounds WHERE kind = $1 ORDER BY ended_at DESC LIMIT $2`,
		string(kind), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []game.RoundSnapshot
	for rows.Next() {
		var snap game.RoundSnapshot
		var k, state, category string
		if err := rows.Scan(&snap.ID, &k, &state, &category, &snap.Multiplier,
			&snap.WinningColor, &snap.DurationMs, &snap.StartedAt, &snap.EndedAt); err != nil {
			return nil, err
		}
		snap.Kind = game.GameKind(k)
		snap.State = game.RoundState(state)
		snap.Category = game.Category(category)
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	err := s.db.PingContext(ctx)
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := s.db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)

	return stats
}

func (s *service) Close() error {
	log.Printf("[DB] Disconnected from database: %s", database)
	return s.db.Close()
}

func nullable(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

// RunMigrations applies all pending migrations from the given path.
func RunMigrations(db *sql.DB, migrationsPath string) error {
	m, err := newMigrator(db, migrationsPath)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// RollbackMigration rolls back the most recent migration.
func RollbackMigration(db *sql.DB, migrationsPath string) error {
	m, err := newMigrator(db, migrationsPath)
	if err != nil {
		return err
	}
	if err := m.Steps(-1); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// GetMigrationVersion reports the current schema version and dirty flag.
func GetMigrationVersion(db *sql.DB, migrationsPath string) (uint, bool, error) {
	m, err := newMigrator(db, migrationsPath)
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if err == migrate.ErrNilVersion {
		return 0, false, nil
	}
	return version, dirty, err
}

func newMigrator(db *sql.DB, migrationsPath string) (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, err
	}
	return migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
}
