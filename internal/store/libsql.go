package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"
	"golang.org/x/mod/semver"

	"github.com/rendis/joblint/pkg/schema"
)

// LibSQLStore implements Store using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path.
// The path should be a file URI, e.g. "file:/path/to/registry.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "open libsql %s", dbPath).WithCause(err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so QueryRow is used for all of them.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	if err := runMigrations(ctx, s.db); err != nil {
		return schema.NewError(schema.ErrCodeStore, "migrate stage registry").WithCause(err)
	}
	return nil
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// RegisterStage inserts a stage or replaces the steps of an existing
// name/version pair. Missing ID and version are filled in on stage.
func (s *LibSQLStore) RegisterStage(ctx context.Context, stage *Stage) error {
	if strings.TrimSpace(stage.Name) == "" {
		return schema.NewError(schema.ErrCodeValidation, "stage name is required")
	}
	if stage.Version == "" {
		stage.Version = DefaultStageVersion
	}
	if stage.ID == "" {
		stage.ID = uuid.New().String()
	}
	steps := stage.Steps
	if len(steps) == 0 {
		steps = json.RawMessage("[]")
	}
	if !json.Valid(steps) {
		return schema.NewErrorf(schema.ErrCodeValidation, "stage %q steps are not valid JSON", stage.Name)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stages (id, name, version, description, steps, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name, version) DO UPDATE SET
		   description=excluded.description, steps=excluded.steps,
		   updated_at=CURRENT_TIMESTAMP`,
		stage.ID, stage.Name, stage.Version, nullStr(stage.Description), string(steps),
		timeOrNow(stage.CreatedAt), timeOrNow(stage.UpdatedAt),
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "register stage %q", stage.Name).WithCause(err)
	}
	return nil
}

// GetStage returns the highest version registered under name. Versions are
// ordered as semantic versions; ones that do not parse rank below all that do.
func (s *LibSQLStore) GetStage(ctx context.Context, name string) (*Stage, error) {
	stages, err := s.ListStages(ctx, StageFilter{Name: name})
	if err != nil {
		return nil, err
	}
	if len(stages) == 0 {
		return nil, storeNotFound("stage", name)
	}
	return stages[0], nil
}

// GetStageVersion returns one exact name/version pair.
func (s *LibSQLStore) GetStageVersion(ctx context.Context, name, version string) (*Stage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, version, description, steps, created_at, updated_at
		 FROM stages WHERE name = ? AND version = ?`, name, version)
	st, err := scanStage(row)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("stage", name+"@"+version)
	}
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "get stage %q", name).WithCause(err)
	}
	return st, nil
}

// ListStages returns stages ordered by name, newest version first.
func (s *LibSQLStore) ListStages(ctx context.Context, filter StageFilter) ([]*Stage, error) {
	query := `SELECT id, name, version, description, steps, created_at, updated_at FROM stages`
	var args []any
	if filter.Name != "" {
		query += " WHERE name = ?"
		args = append(args, filter.Name)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "list stages").WithCause(err)
	}
	defer rows.Close()

	var stages []*Stage
	for rows.Next() {
		st, err := scanStage(rows)
		if err != nil {
			return nil, schema.NewError(schema.ErrCodeStore, "scan stage").WithCause(err)
		}
		stages = append(stages, st)
	}
	if err := rows.Err(); err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "list stages").WithCause(err)
	}

	sort.SliceStable(stages, func(i, j int) bool {
		if stages[i].Name != stages[j].Name {
			return stages[i].Name < stages[j].Name
		}
		return compareVersions(stages[i].Version, stages[j].Version) > 0
	})

	if filter.Limit > 0 && len(stages) > filter.Limit {
		stages = stages[:filter.Limit]
	}
	return stages, nil
}

// StageNames returns every distinct registered stage name, sorted.
func (s *LibSQLStore) StageNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT name FROM stages ORDER BY name`)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "list stage names").WithCause(err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, schema.NewError(schema.ErrCodeStore, "scan stage name").WithCause(err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DeleteStage removes one version of a stage, or every version when
// version is empty.
func (s *LibSQLStore) DeleteStage(ctx context.Context, name, version string) error {
	var (
		res sql.Result
		err error
		id  = name
	)
	if version == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM stages WHERE name = ?`, name)
	} else {
		id = name + "@" + version
		res, err = s.db.ExecContext(ctx, `DELETE FROM stages WHERE name = ? AND version = ?`, name, version)
	}
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "delete stage %q", id).WithCause(err)
	}
	return checkRowsAffected(res, "stage", id)
}

// --- Helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStage(row rowScanner) (*Stage, error) {
	st := &Stage{}
	var desc sql.NullString
	var steps string
	if err := row.Scan(&st.ID, &st.Name, &st.Version, &desc, &steps, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return nil, err
	}
	st.Description = desc.String
	st.Steps = json.RawMessage(steps)
	return st, nil
}

// compareVersions orders a and b as semantic versions, with unparseable
// versions below parseable ones and compared lexically among themselves.
func compareVersions(a, b string) int {
	va, vb := canonicalVersion(a), canonicalVersion(b)
	switch {
	case va != "" && vb != "":
		return semver.Compare(va, vb)
	case va != "":
		return 1
	case vb != "":
		return -1
	default:
		return strings.Compare(a, b)
	}
}

func canonicalVersion(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return v
}

func storeNotFound(resource, id string) *schema.LintError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
