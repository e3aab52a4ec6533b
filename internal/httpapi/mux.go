package httpapi

import (
	"database/sql"
	"net/http"

	"surfsup-server/internal/metrics"
)

func NewMux(db *sql.DB, metricsEnabled bool) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, db)
	if metricsEnabled {
		mux.Handle("GET /metrics", metrics.Handler())
	}
	return mux
}
