package controller

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"surfsup-server/internal/modules/climate/aggregate"
	"surfsup-server/internal/modules/climate/repository"
	"surfsup-server/internal/modules/climate/types"
	"surfsup-server/internal/modules/climate/views"
	"surfsup-server/internal/utils"
)

const noDataMessage = "no data for range"

func (c *climateControllerImpl) handleWelcome(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := views.RenderWelcome(&buf, &views.WelcomeData{Routes: views.Routes}); err != nil {
		slog.Error("render welcome failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	utils.WriteHTML(w, http.StatusOK, buf.String())
}

// openSession acquires a store session or writes a 500. Callers must defer
// closeSession on success.
func (c *climateControllerImpl) openSession(w http.ResponseWriter, r *http.Request) (repository.ClimateSession, bool) {
	sess, err := c.store.Session(r.Context())
	if err != nil {
		slog.Error("acquire store session failed", "path", r.URL.Path, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "store unavailable")
		return nil, false
	}
	return sess, true
}

func closeSession(sess repository.ClimateSession) {
	if err := sess.Close(); err != nil {
		slog.Error("release store session", "error", err)
	}
}

func (c *climateControllerImpl) handlePrecipitation(w http.ResponseWriter, r *http.Request) {
	sess, ok := c.openSession(w, r)
	if !ok {
		return
	}
	defer closeSession(sess)

	ctx := r.Context()
	prior, err := lastYearStart(ctx, sess)
	if errors.Is(err, repository.ErrNoData) {
		utils.WriteJSON(w, http.StatusOK, map[string]*float64{})
		return
	}
	if err != nil {
		slog.Error("precipitation: most recent date failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load measurements")
		return
	}

	rows, err := sess.Measurements(ctx, types.MeasurementFilter{After: &prior})
	if err != nil {
		slog.Error("precipitation: measurements failed", "after", prior.Format(types.DateLayout), "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load measurements")
		return
	}
	utils.WriteJSON(w, http.StatusOK, aggregate.PrecipitationByDate(rows))
}

func (c *climateControllerImpl) handleStations(w http.ResponseWriter, r *http.Request) {
	sess, ok := c.openSession(w, r)
	if !ok {
		return
	}
	defer closeSession(sess)

	stations, err := sess.Stations(r.Context())
	if err != nil {
		slog.Error("stations: query failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load stations")
		return
	}
	utils.WriteJSON(w, http.StatusOK, aggregate.StationNames(stations))
}

func (c *climateControllerImpl) handleTobs(w http.ResponseWriter, r *http.Request) {
	sess, ok := c.openSession(w, r)
	if !ok {
		return
	}
	defer closeSession(sess)

	ctx := r.Context()
	all, err := sess.Measurements(ctx, types.MeasurementFilter{})
	if err != nil {
		slog.Error("tobs: measurements failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load measurements")
		return
	}
	station, err := aggregate.MostActiveStation(all)
	if errors.Is(err, aggregate.ErrEmpty) {
		utils.WriteJSON(w, http.StatusOK, map[string]float64{})
		return
	}
	if err != nil {
		slog.Error("tobs: most active station failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to resolve most active station")
		return
	}

	prior, err := lastYearStart(ctx, sess)
	if err != nil {
		slog.Error("tobs: most recent date failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load measurements")
		return
	}

	rows, err := sess.Measurements(ctx, types.MeasurementFilter{After: &prior, Station: station})
	if err != nil {
		slog.Error("tobs: station measurements failed", "station", station, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load measurements")
		return
	}
	slog.Debug("tobs: most active station", "station", station, "rows", len(rows))
	utils.WriteJSON(w, http.StatusOK, aggregate.TemperatureByDate(rows))
}

func (c *climateControllerImpl) handleFrom(w http.ResponseWriter, r *http.Request) {
	start, err := parseDateParam(r, "start")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	c.writeSummary(w, r, types.MeasurementFilter{From: &start})
}

func (c *climateControllerImpl) handleRange(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRangeParams(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	c.writeSummary(w, r, types.MeasurementFilter{From: &start, To: &end})
}

func (c *climateControllerImpl) writeSummary(w http.ResponseWriter, r *http.Request, filter types.MeasurementFilter) {
	sess, ok := c.openSession(w, r)
	if !ok {
		return
	}
	defer closeSession(sess)

	rows, err := sess.Measurements(r.Context(), filter)
	if err != nil {
		slog.Error("summary: measurements failed", "path", r.URL.Path, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load measurements")
		return
	}
	summary, err := aggregate.Summarize(aggregate.Temperatures(rows))
	if errors.Is(err, aggregate.ErrEmpty) {
		utils.WriteError(w, http.StatusBadRequest, noDataMessage)
		return
	}
	if err != nil {
		slog.Error("summary: aggregate failed", "path", r.URL.Path, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to summarize temperatures")
		return
	}
	utils.WriteJSON(w, http.StatusOK, summary)
}

// lastYearStart returns the exclusive lower bound of the trailing year of data.
func lastYearStart(ctx context.Context, sess repository.ClimateSession) (time.Time, error) {
	latest, err := sess.MostRecentDate(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return aggregate.OneYearPrior(latest), nil
}
