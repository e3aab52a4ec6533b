// Package schema pins the layout of the climate store the server reads from.
// The expected tables are declared in Go and checked against the live store at
// startup; the embedded SQL files (named with a 4-digit version prefix, e.g.
// 0001_climate.sql) describe the same layout and are used to build fixtures.
package schema

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"regexp"
	"sort"
	"strings"
)

//go:embed sql/*.sql
var sqlFS embed.FS

const sqlDir = "sql"

var versionFileRe = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// ErrMismatch is returned by Verify when the store does not match Tables.
var ErrMismatch = errors.New("schema mismatch")

// Affinity is the SQLite column type affinity.
type Affinity string

const (
	AffinityInteger Affinity = "INTEGER"
	AffinityText    Affinity = "TEXT"
	AffinityReal    Affinity = "REAL"
	AffinityNumeric Affinity = "NUMERIC"
	AffinityBlob    Affinity = "BLOB"
)

type Column struct {
	Name     string
	Affinity Affinity
}

type Table struct {
	Name    string
	Columns []Column
}

// Tables lists the columns the API reads. Extra columns in the store are ignored.
var Tables = []Table{
	{
		Name: "station",
		Columns: []Column{
			{Name: "station", Affinity: AffinityText},
			{Name: "name", Affinity: AffinityText},
		},
	},
	{
		Name: "measurement",
		Columns: []Column{
			{Name: "station", Affinity: AffinityText},
			{Name: "date", Affinity: AffinityText},
			{Name: "prcp", Affinity: AffinityReal},
			{Name: "tobs", Affinity: AffinityReal},
		},
	},
}

type versionFile struct {
	version string
	name    string
	body    string
}

func versionFiles() ([]versionFile, error) {
	entries, err := fs.ReadDir(sqlFS, sqlDir)
	if err != nil {
		return nil, fmt.Errorf("read schema dir: %w", err)
	}
	var out []versionFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := versionFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		body, err := fs.ReadFile(sqlFS, sqlDir+"/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		out = append(out, versionFile{version: m[1], name: m[2], body: string(body)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// Version returns the newest embedded schema version, e.g. "0001".
func Version() (string, error) {
	files, err := versionFiles()
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", errors.New("no embedded schema files")
	}
	return files[len(files)-1].version, nil
}

// DDL returns the embedded schema statements in version order.
func DDL() (string, error) {
	files, err := versionFiles()
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(files))
	for _, f := range files {
		parts = append(parts, f.body)
	}
	return strings.Join(parts, "\n"), nil
}

// Verify checks that every table and column in Tables exists in the store
// with a compatible type affinity.
func Verify(ctx context.Context, db *sql.DB) error {
	var problems []string
	for _, table := range Tables {
		cols, err := tableColumns(ctx, db, table.Name)
		if err != nil {
			return fmt.Errorf("inspect table %s: %w", table.Name, err)
		}
		if len(cols) == 0 {
			problems = append(problems, fmt.Sprintf("table %q is missing", table.Name))
			continue
		}
		for _, want := range table.Columns {
			declared, ok := cols[want.Name]
			if !ok {
				problems = append(problems, fmt.Sprintf("column %s.%s is missing", table.Name, want.Name))
				continue
			}
			if got := AffinityOf(declared); !compatible(got, want.Affinity) {
				problems = append(problems, fmt.Sprintf("column %s.%s has type %q (affinity %s), want %s",
					table.Name, want.Name, declared, got, want.Affinity))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrMismatch, strings.Join(problems, "; "))
	}

	version, err := Version()
	if err != nil {
		return err
	}
	slog.Info("schema verified", "version", version, "tables", len(Tables))
	return nil
}

func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT name, type FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close table_info rows", "table", table, "error", err)
		}
	}()
	out := make(map[string]string)
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, err
		}
		out[name] = typ
	}
	return out, rows.Err()
}

// AffinityOf applies SQLite's type affinity rules to a declared column type.
func AffinityOf(declared string) Affinity {
	t := strings.ToUpper(declared)
	switch {
	case strings.Contains(t, "INT"):
		return AffinityInteger
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return AffinityText
	case t == "", strings.Contains(t, "BLOB"):
		return AffinityBlob
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return AffinityReal
	default:
		return AffinityNumeric
	}
}

// NUMERIC (e.g. DECIMAL) columns satisfy a REAL requirement.
func compatible(got, want Affinity) bool {
	if got == want {
		return true
	}
	return want == AffinityReal && got == AffinityNumeric
}
