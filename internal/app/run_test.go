package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	_ "github.com/mattn/go-sqlite3"

	"surfsup-server/internal/config"
	"surfsup-server/internal/modules/climate/types"
	"surfsup-server/internal/modules/climate/views"
	"surfsup-server/internal/schema"
)

const fixtureRows = `
INSERT INTO station (station, name, latitude, longitude, elevation) VALUES
  ('USC00519397', 'WAIKIKI 717.2, HI US', 21.2716, -157.8168, 3.0),
  ('USC00519281', 'WAIHEE 837.5, HI US', 21.45167, -157.84889, 32.9);
INSERT INTO measurement (station, date, prcp, tobs) VALUES
  ('USC00519397', '2016-08-23', 0.00, 81.0),
  ('USC00519397', '2016-08-24', 0.08, 79.0),
  ('USC00519281', '2016-08-24', NULL, 77.0),
  ('USC00519281', '2017-01-15', 0.01, 68.0),
  ('USC00519281', '2017-08-22', 0.50, 75.0),
  ('USC00519397', '2017-08-23', 0.00, 81.0);
`

func writeStore(t *testing.T, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hawaii.sqlite")
	rw, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		t.Fatalf("open rw: %v", err)
	}
	defer func() { _ = rw.Close() }()
	for _, stmt := range stmts {
		if _, err := rw.Exec(stmt); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return path
}

func fixtureStore(t *testing.T) string {
	t.Helper()
	ddl, err := schema.DDL()
	if err != nil {
		t.Fatalf("ddl: %v", err)
	}
	return writeStore(t, ddl, fixtureRows)
}

func testConfig(path string) config.Config {
	return config.Config{
		AppEnv:             "dev",
		HTTPAddr:           "127.0.0.1:0",
		MetricsEnabled:     true,
		SQLiteDriver:       "sqlite3",
		SQLitePath:         path,
		SQLiteMaxOpenConns: 2,
		SQLiteMaxIdleConns: 2,
	}
}

func getJSON(t *testing.T, ts *httptest.Server, path string, out any) int {
	t.Helper()
	resp, err := ts.Client().Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return resp.StatusCode
}

func TestNewMux_AgainstStore(t *testing.T) {
	cfg := testConfig(fixtureStore(t))
	dbConn, err := openStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	t.Cleanup(func() { _ = dbConn.Close() })
	if err := views.LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}

	ts := httptest.NewServer(NewMux(dbConn, cfg))
	t.Cleanup(ts.Close)

	t.Run("stations", func(t *testing.T) {
		var got map[string]string
		if code := getJSON(t, ts, "/api/v1.0/stations", &got); code != http.StatusOK {
			t.Fatalf("status=%d", code)
		}
		want := map[string]string{
			"USC00519281": "WAIHEE 837.5, HI US",
			"USC00519397": "WAIKIKI 717.2, HI US",
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("stations mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("precipitation", func(t *testing.T) {
		var got map[string]*float64
		if code := getJSON(t, ts, "/api/v1.0/precipitation", &got); code != http.StatusOK {
			t.Fatalf("status=%d", code)
		}
		if _, ok := got["2016-08-23"]; ok {
			t.Errorf("2016-08-23 is not after the one-year cutoff")
		}
		if v, ok := got["2017-08-22"]; !ok || v == nil || *v != 0.5 {
			t.Errorf("2017-08-22 = %v; want 0.5", v)
		}
	})

	t.Run("tobs picks the station with most rows", func(t *testing.T) {
		// Both stations have 3 rows; the lexicographically smaller code wins.
		var got map[string]float64
		if code := getJSON(t, ts, "/api/v1.0/tobs", &got); code != http.StatusOK {
			t.Fatalf("status=%d", code)
		}
		want := map[string]float64{"2016-08-24": 77, "2017-01-15": 68, "2017-08-22": 75}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("tobs mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("range summary", func(t *testing.T) {
		var got types.TemperatureSummary
		if code := getJSON(t, ts, "/api/v1.0/2016-08-24/2017-01-15", &got); code != http.StatusOK {
			t.Fatalf("status=%d", code)
		}
		want := types.TemperatureSummary{Minimum: 68, Maximum: 79, Average: 74.66666666666667}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("summary mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty range", func(t *testing.T) {
		var got map[string]string
		if code := getJSON(t, ts, "/api/v1.0/2009-01-01/2009-12-31", &got); code != http.StatusBadRequest {
			t.Fatalf("status=%d want=400", code)
		}
		if got["message"] != "no data for range" {
			t.Errorf("message=%q", got["message"])
		}
	})

	t.Run("welcome", func(t *testing.T) {
		resp, err := ts.Client().Get(ts.URL + "/")
		if err != nil {
			t.Fatalf("GET /: %v", err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status=%d", resp.StatusCode)
		}
	})

	t.Run("range on the first calendar day", func(t *testing.T) {
		var got map[string]string
		if code := getJSON(t, ts, "/api/v1.0/0001-01-01/0001-01-01", &got); code != http.StatusBadRequest {
			t.Fatalf("status=%d want=400 (body %v)", code, got)
		}
		if got["message"] != "no data for range" {
			t.Errorf("message=%q", got["message"])
		}
	})

	t.Run("healthz", func(t *testing.T) {
		var got map[string]string
		if code := getJSON(t, ts, "/healthz", &got); code != http.StatusOK {
			t.Fatalf("status=%d", code)
		}
	})
}

func TestOpenStore_Failures(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		cfg := testConfig(filepath.Join(t.TempDir(), "absent.sqlite"))
		if _, err := openStore(context.Background(), cfg); err == nil {
			t.Fatal("err = nil; want missing store error")
		}
	})

	t.Run("schema mismatch", func(t *testing.T) {
		path := writeStore(t, `CREATE TABLE station (station TEXT, name TEXT)`)
		_, err := openStore(context.Background(), testConfig(path))
		if !errors.Is(err, schema.ErrMismatch) {
			t.Fatalf("err = %v; want ErrMismatch", err)
		}
	})
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := testConfig(fixtureStore(t))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- Run(ctx, cfg) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run err = %v; want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_MissingStore(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "absent.sqlite"))
	if err := Run(context.Background(), cfg); err == nil {
		t.Fatal("Run err = nil; want error")
	}
}
