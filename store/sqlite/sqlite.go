/*
Package sqlite persists survey populations and computed results.

PURPOSE:
  Scenario files cover hand-written test cases; surveys are the bulk
  path. A survey is a stored population (entity counts plus raw input
  columns) that can be loaded into a fresh simulation any number of
  times, and each computation run can write its output vectors back
  next to the inputs. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  surveys:        One row per stored population
  survey_blocks:  Per-entity member counts
  survey_inputs:  One row per input column, values as a JSON array
  survey_results: One row per computed column per run

COLUMN ENCODING:
  Input columns are stored exactly as parsed from the scenario (JSON
  array of raw values); validation happens on load, when the column
  goes through the variable's coercion pipeline. Result columns are
  encoded from typed vectors, dates as ISO strings.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/surveys.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  id, err := store.SaveSurvey(ctx, "census-2014", scenario)
  err = store.LoadInto(ctx, id, sim)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - datatable: the scenario format surveys are stored as
  - engine: the simulation the loaded inputs feed
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/fiscal-engine/datatable"
	"github.com/warp/fiscal-engine/engine"
)

// Store persists surveys and computation results in SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// SurveyInfo is a survey listing entry.
type SurveyInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Date      string    `json:"date,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS surveys (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		date TEXT,
		created_at TEXT NOT NULL
	);

	-- Per-entity member counts
	CREATE TABLE IF NOT EXISTS survey_blocks (
		survey_id TEXT NOT NULL REFERENCES surveys(id) ON DELETE CASCADE,
		entity_kind TEXT NOT NULL,
		member_count INTEGER NOT NULL,
		PRIMARY KEY (survey_id, entity_kind)
	);

	-- Raw input columns, one JSON array per variable
	CREATE TABLE IF NOT EXISTS survey_inputs (
		survey_id TEXT NOT NULL REFERENCES surveys(id) ON DELETE CASCADE,
		entity_kind TEXT NOT NULL,
		variable TEXT NOT NULL,
		values_json TEXT NOT NULL,
		PRIMARY KEY (survey_id, variable)
	);

	-- Computed columns, one JSON array per variable per run
	CREATE TABLE IF NOT EXISTS survey_results (
		survey_id TEXT NOT NULL REFERENCES surveys(id) ON DELETE CASCADE,
		run_id TEXT NOT NULL,
		variable TEXT NOT NULL,
		values_json TEXT NOT NULL,
		computed_at TEXT NOT NULL,
		PRIMARY KEY (survey_id, run_id, variable)
	);

	CREATE INDEX IF NOT EXISTS idx_survey_results_run
		ON survey_results(survey_id, run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SURVEYS - Save / load / list / delete
// =============================================================================

// SaveSurvey stores a scenario as a named survey and returns its id.
// Names are unique; saving under an existing name fails.
func (s *Store) SaveSurvey(ctx context.Context, name string, sc *datatable.Scenario) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		return "", fmt.Errorf("survey name is required")
	}
	if len(sc.Entities) == 0 {
		return "", fmt.Errorf("survey has no entities")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	id := uuid.New().String()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO surveys (id, name, date, created_at) VALUES (?, ?, ?, ?)`,
		id, name, sc.Date, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("insert survey: %w", err)
	}

	for kind, block := range sc.Entities {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO survey_blocks (survey_id, entity_kind, member_count) VALUES (?, ?, ?)`,
			id, kind, block.Count)
		if err != nil {
			return "", fmt.Errorf("insert entity block %q: %w", kind, err)
		}
		for variable, column := range block.Inputs {
			encoded, err := json.Marshal(column)
			if err != nil {
				return "", fmt.Errorf("encode column %q: %w", variable, err)
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO survey_inputs (survey_id, entity_kind, variable, values_json) VALUES (?, ?, ?, ?)`,
				id, kind, variable, string(encoded))
			if err != nil {
				return "", fmt.Errorf("insert column %q: %w", variable, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// LoadScenario rebuilds the stored scenario for a survey.
func (s *Store) LoadScenario(ctx context.Context, surveyID string) (*datatable.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc := &datatable.Scenario{Entities: make(map[string]datatable.EntityBlock)}

	err := s.db.QueryRowContext(ctx,
		`SELECT date FROM surveys WHERE id = ?`, surveyID).Scan(&sc.Date)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("survey %q not found", surveyID)
	}
	if err != nil {
		return nil, fmt.Errorf("query survey: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_kind, member_count FROM survey_blocks WHERE survey_id = ?`, surveyID)
	if err != nil {
		return nil, fmt.Errorf("query entity blocks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("scan entity block: %w", err)
		}
		sc.Entities[kind] = datatable.EntityBlock{Count: count, Inputs: make(map[string][]any)}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entity blocks: %w", err)
	}

	inputs, err := s.db.QueryContext(ctx,
		`SELECT entity_kind, variable, values_json FROM survey_inputs WHERE survey_id = ?`, surveyID)
	if err != nil {
		return nil, fmt.Errorf("query input columns: %w", err)
	}
	defer inputs.Close()
	for inputs.Next() {
		var kind, variable, encoded string
		if err := inputs.Scan(&kind, &variable, &encoded); err != nil {
			return nil, fmt.Errorf("scan input column: %w", err)
		}
		block, ok := sc.Entities[kind]
		if !ok {
			return nil, fmt.Errorf("column %q references unknown entity %q", variable, kind)
		}
		var column []any
		if err := json.Unmarshal([]byte(encoded), &column); err != nil {
			return nil, fmt.Errorf("decode column %q: %w", variable, err)
		}
		block.Inputs[variable] = column
	}
	if err := inputs.Err(); err != nil {
		return nil, fmt.Errorf("iterate input columns: %w", err)
	}

	return sc, nil
}

// LoadInto loads a stored survey into sim through the standard
// validation pipeline. Equivalent to LoadScenario followed by Apply.
func (s *Store) LoadInto(ctx context.Context, surveyID string, sim *engine.Simulation) error {
	sc, err := s.LoadScenario(ctx, surveyID)
	if err != nil {
		return err
	}
	return sc.Apply(sim)
}

// ListSurveys returns all stored surveys, newest first.
func (s *Store) ListSurveys(ctx context.Context) ([]SurveyInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, date, created_at FROM surveys ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query surveys: %w", err)
	}
	defer rows.Close()

	var out []SurveyInfo
	for rows.Next() {
		var info SurveyInfo
		var createdAt string
		if err := rows.Scan(&info.ID, &info.Name, &info.Date, &createdAt); err != nil {
			return nil, fmt.Errorf("scan survey: %w", err)
		}
		if info.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteSurvey removes a survey with its columns and results.
func (s *Store) DeleteSurvey(ctx context.Context, surveyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM surveys WHERE id = ?`, surveyID)
	if err != nil {
		return fmt.Errorf("delete survey: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("survey %q not found", surveyID)
	}
	return nil
}

// =============================================================================
// RESULTS - Computed vectors written back next to the inputs
// =============================================================================

// SaveResults stores computed vectors for a survey under a run id.
func (s *Store) SaveResults(ctx context.Context, surveyID, runID string, results map[string]engine.Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	computedAt := time.Now().UTC().Format(time.RFC3339)
	for variable, vec := range results {
		encoded, err := json.Marshal(encodeVector(vec))
		if err != nil {
			return fmt.Errorf("encode result %q: %w", variable, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO survey_results (survey_id, run_id, variable, values_json, computed_at)
			 VALUES (?, ?, ?, ?, ?)`,
			surveyID, runID, variable, string(encoded), computedAt)
		if err != nil {
			return fmt.Errorf("insert result %q: %w", variable, err)
		}
	}

	return tx.Commit()
}

// LoadResults returns one run's computed columns, decoded from JSON.
func (s *Store) LoadResults(ctx context.Context, surveyID, runID string) (map[string][]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT variable, values_json FROM survey_results WHERE survey_id = ? AND run_id = ?`,
		surveyID, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]any)
	for rows.Next() {
		var variable, encoded string
		if err := rows.Scan(&variable, &encoded); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		var column []any
		if err := json.Unmarshal([]byte(encoded), &column); err != nil {
			return nil, fmt.Errorf("decode result %q: %w", variable, err)
		}
		out[variable] = column
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no results for survey %q run %q", surveyID, runID)
	}
	return out, nil
}

// encodeVector flattens a typed vector into JSON-friendly values.
// Dates come out as ISO day strings, matching the input format.
func encodeVector(vec engine.Vector) []any {
	out := make([]any, vec.Len())
	for i := range out {
		switch x := vec.At(i).(type) {
		case time.Time:
			out[i] = x.Format("2006-01-02")
		default:
			out[i] = x
		}
	}
	return out
}
