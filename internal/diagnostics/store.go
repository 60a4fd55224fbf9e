// Package diagnostics persists evaluation outputs to SQLite: one run record
// per invocation, scalar attributes such as the kernel coefficients, and one
// dataset per field component with its shape, values and summary.
package diagnostics

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/yee-ohm/internal/grid"
)

// Store wraps a SQLite connection for diagnostics output.
type Store struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*Store, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		dimension INTEGER NOT NULL,
		cells_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS attributes (
		run_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value REAL NOT NULL,
		PRIMARY KEY (run_id, key)
	);

	CREATE TABLE IF NOT EXISTS datasets (
		run_id TEXT NOT NULL,
		path TEXT NOT NULL,
		quantity TEXT NOT NULL,
		shape_json TEXT NOT NULL,
		data BLOB NOT NULL,
		min REAL,
		max REAL,
		l2 REAL,
		PRIMARY KEY (run_id, path)
	);

	CREATE INDEX IF NOT EXISTS idx_datasets_run ON datasets(run_id);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Run is one stored evaluation.
type Run struct {
	ID        string `db:"id"`
	CreatedAt int64  `db:"created_at"`
	Dimension int    `db:"dimension"`
	CellsJSON string `db:"cells_json"`
}

// CreateRun records a new run for layout l and returns its ID.
func (s *Store) CreateRun(l *grid.Layout) (string, error) {
	id := uuid.NewString()
	cells, err := json.Marshal(l.Cells())
	if err != nil {
		return "", err
	}
	_, err = s.conn.Exec(
		"INSERT INTO runs (id, created_at, dimension, cells_json) VALUES (?, ?, ?, ?)",
		id, time.Now().Unix(), l.Dimension(), string(cells),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	slog.Debug("diagnostics run created", "run", id)
	return id, nil
}

// GetRun loads a run record.
func (s *Store) GetRun(id string) (Run, error) {
	var r Run
	err := s.conn.Get(&r, "SELECT id, created_at, dimension, cells_json FROM runs WHERE id = ?", id)
	return r, err
}

// WriteAttribute stores a named scalar on a run, replacing any previous value.
func (s *Store) WriteAttribute(runID, key string, value float64) error {
	_, err := s.conn.Exec(
		"INSERT OR REPLACE INTO attributes (run_id, key, value) VALUES (?, ?, ?)",
		runID, key, value,
	)
	return err
}

// WriteAttributes stores several scalars in one transaction.
func (s *Store) WriteAttributes(runID string, attrs map[string]float64) error {
	tx, err := s.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for k, v := range attrs {
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO attributes (run_id, key, value) VALUES (?, ?, ?)",
			runID, k, v,
		); err != nil {
			return fmt.Errorf("insert attribute %s: %w", k, err)
		}
	}

	return tx.Commit()
}

// ReadAttribute retrieves a scalar attribute.
func (s *Store) ReadAttribute(runID, key string) (float64, error) {
	var value float64
	err := s.conn.Get(&value, "SELECT value FROM attributes WHERE run_id = ? AND key = ?", runID, key)
	return value, err
}

// Dataset is one stored field. Data holds every allocated sample, ghosts
// included; Summary covers the physical box only.
type Dataset struct {
	Path     string
	Quantity string
	Shape    [3]int
	Data     []float64
	Summary  Summary
}

// SQLite stores NaN as NULL, so the summary columns are nullable.
type datasetRow struct {
	Path      string          `db:"path"`
	Quantity  string          `db:"quantity"`
	ShapeJSON string          `db:"shape_json"`
	Data      []byte          `db:"data"`
	Min       sql.NullFloat64 `db:"min"`
	Max       sql.NullFloat64 `db:"max"`
	L2        sql.NullFloat64 `db:"l2"`
}

// encodeSamples packs samples as little-endian IEEE 754 bits so Inf and NaN
// survive the round trip.
func encodeSamples(data []float64) []byte {
	buf := make([]byte, 0, 8*len(data))
	for _, v := range data {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
	}
	return buf
}

func decodeSamples(buf []byte) ([]float64, error) {
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("sample blob of %d bytes is not a multiple of 8", len(buf))
	}
	data := make([]float64, len(buf)/8)
	for i := range data {
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return data, nil
}

func nullableOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// WriteField stores every sample of f, ghosts included, under path. The
// summary is taken over the physical box of f's quantity in l.
func (s *Store) WriteField(runID, path string, l *grid.Layout, f *grid.Field) error {
	shapeJSON, err := json.Marshal(f.Shape())
	if err != nil {
		return err
	}

	physical := make([]float64, 0, l.PhysicalBox(f.Qty).Size())
	l.EvalOnBox(f, func(idx grid.MeshIndex) {
		physical = append(physical, f.At(idx))
	})
	sum := Summarize(physical)

	_, err = s.conn.Exec(`INSERT OR REPLACE INTO datasets
		(run_id, path, quantity, shape_json, data, min, max, l2)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, path, f.Qty.String(), string(shapeJSON), encodeSamples(f.Data()),
		sum.Min, sum.Max, sum.L2,
	)
	if err != nil {
		return fmt.Errorf("insert dataset %s: %w", path, err)
	}
	return nil
}

// WriteVecField stores the three components of v under path/x, path/y, path/z.
func (s *Store) WriteVecField(runID, path string, l *grid.Layout, v *grid.VecField) error {
	for _, c := range grid.Components {
		if err := s.WriteField(runID, path+"/"+c.String(), l, v.Component(c)); err != nil {
			return err
		}
	}
	return nil
}

// ReadField loads a stored dataset.
func (s *Store) ReadField(runID, path string) (*Dataset, error) {
	var row datasetRow
	err := s.conn.Get(&row,
		"SELECT path, quantity, shape_json, data, min, max, l2 FROM datasets WHERE run_id = ? AND path = ?",
		runID, path,
	)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{
		Path:     row.Path,
		Quantity: row.Quantity,
		Summary: Summary{
			Min: nullableOrNaN(row.Min),
			Max: nullableOrNaN(row.Max),
			L2:  nullableOrNaN(row.L2),
		},
	}
	if err := json.Unmarshal([]byte(row.ShapeJSON), &ds.Shape); err != nil {
		return nil, fmt.Errorf("decode shape %s: %w", path, err)
	}
	if ds.Data, err = decodeSamples(row.Data); err != nil {
		return nil, fmt.Errorf("decode data %s: %w", path, err)
	}
	return ds, nil
}

// Paths lists the dataset paths of a run in lexical order.
func (s *Store) Paths(runID string) ([]string, error) {
	var paths []string
	err := s.conn.Select(&paths, "SELECT path FROM datasets WHERE run_id = ? ORDER BY path", runID)
	return paths, err
}
