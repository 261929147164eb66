package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lilnasy/astro-optimize-pictures/internal/failures"
	"github.com/lilnasy/astro-optimize-pictures/internal/pipeline"
)

// timeLayout has fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store persists run history.
type Store struct {
	db   *sql.DB
	path string
}

// Run is one recorded optimization run.
type Run struct {
	ID            string    `json:"id" yaml:"id"`
	ProjectRoot   string    `json:"project_root" yaml:"project_root"`
	StartedAt     time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt    time.Time `json:"finished_at" yaml:"finished_at"`
	Workers       int       `json:"workers" yaml:"workers"`
	DryRun        bool      `json:"dry_run" yaml:"dry_run"`
	Images        int       `json:"images" yaml:"images"`
	FailedImages  int       `json:"failed_images" yaml:"failed_images"`
	Cached        int       `json:"cached" yaml:"cached"`
	Transcoded    int       `json:"transcoded" yaml:"transcoded"`
	FailedOutputs int       `json:"failed_outputs" yaml:"failed_outputs"`
	ManifestPath  string    `json:"manifest_path,omitempty" yaml:"manifest_path,omitempty"`
	Failures      []Failure `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// Duration is the wall time of the run.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failure is one image that failed during a run.
type Failure struct {
	Image   string `json:"image" yaml:"image"`
	Stage   string `json:"stage" yaml:"stage"`
	Kind    string `json:"kind" yaml:"kind"`
	Message string `json:"message" yaml:"message"`
	LogPath string `json:"log_path,omitempty" yaml:"log_path,omitempty"`
}

// Open creates or opens the ledger database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordRun stores a finished run and its failed images.
func (s *Store) RecordRun(ctx context.Context, report *pipeline.Report, projectRoot, manifestPath string, dryRun bool) error {
	if report == nil {
		return errors.New("record run: nil report")
	}
	cached, transcoded, failedOutputs := report.Totals()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (
            id, project_root, started_at, finished_at, workers, dry_run,
            images, failed_images, cached, transcoded, failed_outputs, manifest_path
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID,
		projectRoot,
		report.Started.UTC().Format(timeLayout),
		report.Finished.UTC().Format(timeLayout),
		report.Workers,
		boolToInt(dryRun),
		len(report.Results),
		report.Failed(),
		cached,
		transcoded,
		failedOutputs,
		nullableString(manifestPath),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, res := range report.Results {
		if res.Err == nil {
			continue
		}
		var logPath string
		var terr *failures.TranscodeError
		if errors.As(res.Err, &terr) {
			logPath = terr.LogPath
		}
		kind := string(failures.KindOf(res.Err))
		if kind == "" {
			kind = "other"
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO failures (run_id, image, stage, kind, message, log_path) VALUES (?, ?, ?, ?, ?, ?)`,
			report.RunID, res.Source, string(res.Stage), kind, res.Err.Error(), nullableString(logPath),
		); err != nil {
			return fmt.Errorf("insert failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// Runs returns up to limit runs, newest first, with their failures.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_root, started_at, finished_at, workers, dry_run,
                images, failed_images, cached, transcoded, failed_outputs, manifest_path
         FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run               Run
			started, finished string
			dryRun            int
			manifest          sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.ProjectRoot, &started, &finished, &run.Workers, &dryRun,
			&run.Images, &run.FailedImages, &run.Cached, &run.Transcoded, &run.FailedOutputs, &manifest); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = parseTime(started)
		run.FinishedAt = parseTime(finished)
		run.DryRun = dryRun != 0
		run.ManifestPath = manifest.String
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	for i := range runs {
		if runs[i].FailedImages == 0 {
			continue
		}
		if runs[i].Failures, err = s.failures(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *Store) failures(ctx context.Context, runID string) ([]Failure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT image, stage, kind, message, log_path FROM failures WHERE run_id = ? ORDER BY image`, runID)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var out []Failure
	for rows.Next() {
		var f Failure
		var logPath sql.NullString
		if err := rows.Scan(&f.Image, &f.Stage, &f.Kind, &f.Message, &logPath); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		f.LogPath = logPath.String
		out = append(out, f)
	}
	return out, rows.Err()
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
