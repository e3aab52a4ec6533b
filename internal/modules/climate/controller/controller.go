package controller

import (
	"net/http"

	"surfsup-server/internal/modules/climate/repository"
)

type ClimateController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type climateControllerImpl struct {
	store repository.ClimateStore
}

func NewClimateController(store repository.ClimateStore) ClimateController {
	return &climateControllerImpl{store: store}
}

// RegisterRoutes mounts the v1.0 API. Literal segments take precedence over
// the {start} wildcard, so /api/v1.0/stations never reaches handleFrom.
func (c *climateControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", c.handleWelcome)
	mux.HandleFunc("GET /api/v1.0/precipitation", c.handlePrecipitation)
	mux.HandleFunc("GET /api/v1.0/stations", c.handleStations)
	mux.HandleFunc("GET /api/v1.0/tobs", c.handleTobs)
	mux.HandleFunc("GET /api/v1.0/{start}", c.handleFrom)
	mux.HandleFunc("GET /api/v1.0/{start}/{end}", c.handleRange)
}
