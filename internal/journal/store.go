// Package journal records hook executions and caches raw analysis output
// in a SQLite database under .relkit.
package journal

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"
	_ "modernc.org/sqlite"

	"relkit/internal/paths"
	"relkit/internal/slogutil"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store provides persistence for hook runs and cached analysis results.
type Store struct {
	conn   *sql.DB
	logger *slog.Logger
	dbPath string
	enc    *zstd.Encoder
	dec    *zstd.Decoder
	now    func() time.Time
}

// Open opens or creates the journal at <dir>/journal.db, where dir is the
// repository's .relkit directory.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	logger = slogutil.OrDiscard(logger)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", paths.DirName, err)
	}

	dbPath := filepath.Join(dir, paths.JournalFile)
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-4000", // 4MB cache
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create decompressor: %w", err)
	}

	s := &Store{conn: conn, logger: logger, dbPath: dbPath, enc: enc, dec: dec, now: time.Now}
	if err := s.initializeSchema(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}
	logger.Debug("Opened journal", "path", dbPath)
	return s, nil
}

func (s *Store) initializeSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS hook_runs (
			id TEXT PRIMARY KEY,
			hook TEXT NOT NULL,
			success INTEGER NOT NULL,
			fallback_used INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			output TEXT,
			error TEXT,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_hook_runs_created_at ON hook_runs(created_at DESC);

		CREATE TABLE IF NOT EXISTS analysis_cache (
			key TEXT PRIMARY KEY,
			payload BLOB NOT NULL,
			tool_version TEXT,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);
		INSERT OR REPLACE INTO schema_version (version) VALUES (1);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Path returns the database file location.
func (s *Store) Path() string { return s.dbPath }

// Close closes the database connection.
func (s *Store) Close() error {
	if s.dec != nil {
		s.dec.Close()
	}
	if s.enc != nil {
		_ = s.enc.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// HookRun is one recorded hook execution.
type HookRun struct {
	ID           string        `json:"id" yaml:"id"`
	Hook         string        `json:"hook" yaml:"hook"`
	Success      bool          `json:"success" yaml:"success"`
	FallbackUsed bool          `json:"fallbackUsed" yaml:"fallbackUsed"`
	Duration     time.Duration `json:"durationMs" yaml:"durationMs"`
	Output       string        `json:"output,omitempty" yaml:"output,omitempty"`
	Error        string        `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt    time.Time     `json:"createdAt" yaml:"createdAt"`
}

// MarshalJSON reports Duration in milliseconds to match its field name.
func (r HookRun) MarshalJSON() ([]byte, error) {
	type plain HookRun
	return json.Marshal(struct {
		plain
		Duration int64 `json:"durationMs"`
	}{plain: plain(r), Duration: r.Duration.Milliseconds()})
}

// RecordHookRun inserts run, assigning an ID and timestamp when missing.
func (s *Store) RecordHookRun(ctx context.Context, run *HookRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now()
	}
	run.CreatedAt = run.CreatedAt.UTC()

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO hook_runs (id, hook, success, fallback_used, duration_ms, output, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Hook,
		boolInt(run.Success),
		boolInt(run.FallbackUsed),
		run.Duration.Milliseconds(),
		nullString(run.Output),
		nullString(run.Error),
		run.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to record hook run: %w", err)
	}
	return nil
}

// ListHookRuns returns the most recent runs first. A non-positive limit
// returns every run.
func (s *Store) ListHookRuns(ctx context.Context, limit int) ([]HookRun, error) {
	query := `
		SELECT id, hook, success, fallback_used, duration_ms, output, error, created_at
		FROM hook_runs
		ORDER BY created_at DESC, rowid DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list hook runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := []HookRun{}
	for rows.Next() {
		var run HookRun
		var success, fallback int
		var durationMs int64
		var output, errMsg sql.NullString
		var createdAt string
		if err := rows.Scan(&run.ID, &run.Hook, &success, &fallback, &durationMs, &output, &errMsg, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan hook run: %w", err)
		}
		run.Success = success != 0
		run.FallbackUsed = fallback != 0
		run.Duration = time.Duration(durationMs) * time.Millisecond
		run.Output = output.String
		run.Error = errMsg.String
		if t, err := time.Parse(timeLayout, createdAt); err == nil {
			run.CreatedAt = t
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CacheKey derives the cache key for an argument vector.
func CacheKey(args []string) string {
	sum := blake2b.Sum256([]byte(strings.Join(args, "\x00")))
	return hex.EncodeToString(sum[:])
}

// Put stores payload for args, replacing any previous entry.
func (s *Store) Put(ctx context.Context, args []string, payload []byte, toolVersion string) error {
	compressed := s.enc.EncodeAll(payload, nil)
	_, err := s.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO analysis_cache (key, payload, tool_version, created_at)
		VALUES (?, ?, ?, ?)
	`, CacheKey(args), compressed, nullString(toolVersion), s.now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to cache analysis: %w", err)
	}
	s.logger.Debug("Cached analysis result", "bytes", len(payload), "stored", len(compressed))
	return nil
}

// Get returns the payload stored for args.
func (s *Store) Get(ctx context.Context, args []string) ([]byte, string, bool, error) {
	var compressed []byte
	var toolVersion sql.NullString
	err := s.conn.QueryRowContext(ctx, `
		SELECT payload, tool_version FROM analysis_cache WHERE key = ?
	`, CacheKey(args)).Scan(&compressed, &toolVersion)
	if err == sql.ErrNoRows {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to read cached analysis: %w", err)
	}
	payload, err := s.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to decompress cached analysis: %w", err)
	}
	return payload, toolVersion.String, true, nil
}

// PruneResult counts rows removed by Prune.
type PruneResult struct {
	HookRuns     int64 `json:"hookRuns" yaml:"hookRuns"`
	CacheEntries int64 `json:"cacheEntries" yaml:"cacheEntries"`
}

// Prune removes hook runs and cache entries older than retention.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (PruneResult, error) {
	var res PruneResult
	cutoff := s.now().UTC().Add(-retention).Format(timeLayout)

	r, err := s.conn.ExecContext(ctx, `DELETE FROM hook_runs WHERE created_at < ?`, cutoff)
	if err != nil {
		return res, fmt.Errorf("failed to prune hook runs: %w", err)
	}
	res.HookRuns, _ = r.RowsAffected()

	r, err = s.conn.ExecContext(ctx, `DELETE FROM analysis_cache WHERE created_at < ?`, cutoff)
	if err != nil {
		return res, fmt.Errorf("failed to prune analysis cache: %w", err)
	}
	res.CacheEntries, _ = r.RowsAffected()
	return res, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
