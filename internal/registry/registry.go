// Package registry stores trained model weights in a SQLite database so
// that the CLI can train once and predict later.
package registry

import (
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/gomachine/gomachine/core/model"
	"github.com/gomachine/gomachine/pkg/errors"
	"github.com/gomachine/gomachine/pkg/log"
)

// ErrNotFound is returned when no model is stored under a name.
var ErrNotFound = errors.New("model not found")

// Entry is one stored model. List leaves Weights nil.
type Entry struct {
	Name      string
	Kind      string
	NFeatures int
	CreatedAt time.Time
	Weights   *model.ModelWeights
}

// Store manages the registry database.
type Store struct {
	db     *sql.DB
	path   string
	logger log.Logger
}

// Open opens or creates the registry at path, creating the parent
// directory and the schema when needed.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.NewValidationError("registry.path", "is required", path)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "create registry directory")
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "open registry")
	}
	// :memory: はコネクションごとに別DBになるため1本に固定
	db.SetMaxOpenConns(1)

	s := &Store{
		db:     db,
		path:   path,
		logger: log.GetLoggerWithName("registry").With("path", path),
	}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create registry schema")
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database path given to Open.
func (s *Store) Path() string { return s.path }

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS models (
			name TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			n_features INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			weights TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_models_kind ON models(kind)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Save stores w under name, replacing any previous model with that name.
// Only fitted, valid weights are accepted.
func (s *Store) Save(ctx context.Context, name string, w *model.ModelWeights) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.NewValidationError("name", "is required", name)
	}
	if w == nil {
		return errors.NewValueError("Registry.Save", "weights are nil")
	}
	if err := w.Validate(); err != nil {
		return err
	}
	if !w.IsFitted {
		return errors.NewNotFittedError(w.ModelType, "Registry.Save")
	}
	data, err := w.ToJSON()
	if err != nil {
		return errors.Wrap(err, "encode weights")
	}

	created := time.Now().UTC()
	nf := FeatureCount(w)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO models (name, kind, n_features, created_at, weights)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			kind = excluded.kind,
			n_features = excluded.n_features,
			created_at = excluded.created_at,
			weights = excluded.weights`,
		name, w.ModelType, nf, created.Format(time.RFC3339Nano), string(data))
	if err != nil {
		return errors.Wrapf(err, "save model %q", name)
	}
	s.logger.Debug("model saved", "name", name, "kind", w.ModelType, log.FeaturesKey, nf)
	return nil
}

// Get loads the model stored under name.
func (s *Store) Get(ctx context.Context, name string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, kind, n_features, created_at, weights FROM models WHERE name = ?`, name)

	var (
		e       Entry
		created string
		data    string
	)
	if err := row.Scan(&e.Name, &e.Kind, &e.NFeatures, &created, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(ErrNotFound, "%q", name)
		}
		return nil, errors.Wrapf(err, "get model %q", name)
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, errors.Wrapf(err, "model %q: created_at", name)
	}
	e.CreatedAt = t

	var w model.ModelWeights
	if err := w.FromJSON([]byte(data)); err != nil {
		return nil, errors.Wrapf(err, "model %q", name)
	}
	e.Weights = &w
	return &e, nil
}

// List returns every stored model ordered by name, without weights.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, kind, n_features, created_at FROM models ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "list models")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			created string
		)
		if err := rows.Scan(&e.Name, &e.Kind, &e.NFeatures, &created); err != nil {
			return nil, errors.Wrap(err, "scan model row")
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, errors.Wrapf(err, "model %q: created_at", e.Name)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list models")
	}
	return out, nil
}

// Delete removes the model stored under name.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM models WHERE name = ?`, name)
	if err != nil {
		return errors.Wrapf(err, "delete model %q", name)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "delete model %q", name)
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "%q", name)
	}
	s.logger.Debug("model deleted", "name", name)
	return nil
}

// FeatureCount は重みから入力特徴量の数を推定します。
func FeatureCount(w *model.ModelWeights) int {
	if layers := w.HyperInts("layers"); len(layers) > 0 {
		return layers[0]
	}
	switch len(w.Shape) {
	case 1:
		return w.Shape[0]
	case 2:
		return w.Shape[1]
	}
	return len(w.Coefficients)
}

// ExportEntry is the YAML form of one stored model.
type ExportEntry struct {
	Name      string          `yaml:"name"`
	Kind      string          `yaml:"kind"`
	NFeatures int             `yaml:"n_features"`
	CreatedAt time.Time       `yaml:"created_at"`
	Weights   ExportedWeights `yaml:"weights"`
}

// ExportedWeights mirrors model.ModelWeights with YAML keys.
type ExportedWeights struct {
	ModelType       string                 `yaml:"model_type"`
	Version         string                 `yaml:"version"`
	Coefficients    []float64              `yaml:"coefficients,flow"`
	Intercept       float64                `yaml:"intercept"`
	Shape           []int                  `yaml:"shape,flow,omitempty"`
	Features        []string               `yaml:"features,flow,omitempty"`
	Hyperparameters map[string]interface{} `yaml:"hyperparameters,omitempty"`
	Metadata        map[string]interface{} `yaml:"metadata,omitempty"`
}

// ExportYAML writes every stored model, weights included, to w as a YAML
// list.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer) error {
	entries, err := s.List(ctx)
	if err != nil {
		return err
	}
	out := make([]ExportEntry, 0, len(entries))
	for _, e := range entries {
		full, err := s.Get(ctx, e.Name)
		if err != nil {
			return err
		}
		mw := full.Weights
		out = append(out, ExportEntry{
			Name:      full.Name,
			Kind:      full.Kind,
			NFeatures: full.NFeatures,
			CreatedAt: full.CreatedAt,
			Weights: ExportedWeights{
				ModelType:       mw.ModelType,
				Version:         mw.Version,
				Coefficients:    mw.Coefficients,
				Intercept:       mw.Intercept,
				Shape:           mw.Shape,
				Features:        mw.Features,
				Hyperparameters: mw.Hyperparameters,
				Metadata:        mw.Metadata,
			},
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return errors.Wrap(err, "marshal registry export")
	}
	return enc.Close()
}
