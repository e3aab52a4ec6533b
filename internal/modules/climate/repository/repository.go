package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"surfsup-server/internal/metrics"
	"surfsup-server/internal/modules/climate/types"
)

//go:embed sql/get-stations.sql
var getStationsSQL string

//go:embed sql/get-most-recent-date.sql
var getMostRecentDateSQL string

//go:embed sql/get-measurements.sql
var getMeasurementsSQL string

// ErrNoData is returned by MostRecentDate when the measurement table is empty.
var ErrNoData = errors.New("no measurements in store")

// ClimateStore hands out sessions; it is the only thing route handlers hold.
type ClimateStore interface {
	Session(ctx context.Context) (ClimateSession, error)
}

// ClimateSession owns one pooled connection until Close.
type ClimateSession interface {
	Stations(ctx context.Context) ([]types.Station, error)
	MostRecentDate(ctx context.Context) (time.Time, error)
	Measurements(ctx context.Context, filter types.MeasurementFilter) ([]types.Measurement, error)
	Close() error
}

type storeImpl struct {
	db *sql.DB
}

func NewStore(db *sql.DB) ClimateStore {
	return &storeImpl{db: db}
}

func (s *storeImpl) Session(ctx context.Context) (ClimateSession, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	metrics.SessionOpened()
	return &sessionImpl{conn: conn}, nil
}

type sessionImpl struct {
	conn   *sql.Conn
	closed bool
}

func (s *sessionImpl) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	metrics.SessionClosed()
	return s.conn.Close()
}

func (s *sessionImpl) Stations(ctx context.Context) (out []types.Station, err error) {
	defer func() { metrics.ObserveQuery("stations", err) }()

	rows, err := s.conn.QueryContext(ctx, getStationsSQL)
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close stations rows", "error", err)
		}
	}()
	for rows.Next() {
		var st types.Station
		if err := rows.Scan(&st.Code, &st.Name); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *sessionImpl) MostRecentDate(ctx context.Context) (latest time.Time, err error) {
	defer func() {
		if errors.Is(err, ErrNoData) {
			metrics.ObserveQuery("most_recent_date", nil)
			return
		}
		metrics.ObserveQuery("most_recent_date", err)
	}()

	var raw sql.NullString
	if err := s.conn.QueryRowContext(ctx, getMostRecentDateSQL).Scan(&raw); err != nil {
		return time.Time{}, fmt.Errorf("query most recent date: %w", err)
	}
	if !raw.Valid {
		return time.Time{}, ErrNoData
	}
	return parseDate(raw.String)
}

func (s *sessionImpl) Measurements(ctx context.Context, filter types.MeasurementFilter) (out []types.Measurement, err error) {
	defer func() { metrics.ObserveQuery("measurements", err) }()

	rows, err := s.conn.QueryContext(ctx, getMeasurementsSQL,
		sql.Named("after_date", dateArg(filter.After)),
		sql.Named("from_date", dateArg(filter.From)),
		sql.Named("to_date", dateArg(filter.To)),
		sql.Named("station_code", filter.Station),
	)
	if err != nil {
		return nil, fmt.Errorf("query measurements: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close measurement rows", "error", err)
		}
	}()
	return scanMeasurements(rows)
}

func scanMeasurements(rows *sql.Rows) ([]types.Measurement, error) {
	var out []types.Measurement
	for rows.Next() {
		var (
			m    types.Measurement
			date string
			prcp sql.NullFloat64
		)
		if err := rows.Scan(&m.Station, &date, &prcp, &m.Temperature); err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		d, err := parseDate(date)
		if err != nil {
			return nil, err
		}
		m.Date = d
		if prcp.Valid {
			v := prcp.Float64
			m.Precipitation = &v
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(types.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// dateArg binds an optional bound; nil becomes NULL and disables the predicate.
func dateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(types.DateLayout)
}
