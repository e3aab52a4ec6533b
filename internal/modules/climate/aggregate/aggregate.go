// Package aggregate holds the pure reshaping and summary functions behind the
// climate routes. Nothing here touches the store.
package aggregate

import (
	"errors"
	"sort"
	"time"

	"surfsup-server/internal/modules/climate/types"
)

// ErrEmpty is returned when an aggregate is requested over no rows.
var ErrEmpty = errors.New("no data")

// OneYearPrior returns the same calendar day one year earlier. Feb 29 maps to
// Feb 28 instead of rolling over into March.
func OneYearPrior(t time.Time) time.Time {
	y, m, d := t.Date()
	y--
	if last := daysIn(y, m); d > last {
		d = last
	}
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MostActiveStation returns the station code with the most rows. Equal counts
// resolve to the lexicographically smallest code.
func MostActiveStation(rows []types.Measurement) (string, error) {
	if len(rows) == 0 {
		return "", ErrEmpty
	}
	counts := make(map[string]int)
	for _, r := range rows {
		counts[r.Station]++
	}
	codes := make([]string, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		if counts[codes[i]] != counts[codes[j]] {
			return counts[codes[i]] > counts[codes[j]]
		}
		return codes[i] < codes[j]
	})
	return codes[0], nil
}

// Summarize computes min, max and mean.
func Summarize(values []float64) (types.TemperatureSummary, error) {
	if len(values) == 0 {
		return types.TemperatureSummary{}, ErrEmpty
	}
	out := types.TemperatureSummary{Minimum: values[0], Maximum: values[0]}
	var sum float64
	for _, v := range values {
		if v < out.Minimum {
			out.Minimum = v
		}
		if v > out.Maximum {
			out.Maximum = v
		}
		sum += v
	}
	out.Average = sum / float64(len(values))
	return out, nil
}

func Temperatures(rows []types.Measurement) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Temperature
	}
	return out
}

// PrecipitationByDate keys rows by date. Several stations report the same
// day, so the last row for a date wins.
func PrecipitationByDate(rows []types.Measurement) map[string]*float64 {
	out := make(map[string]*float64, len(rows))
	for _, r := range rows {
		out[r.Date.Format(types.DateLayout)] = r.Precipitation
	}
	return out
}

// TemperatureByDate keys rows by date; the last row for a date wins.
func TemperatureByDate(rows []types.Measurement) map[string]float64 {
	out := make(map[string]float64, len(rows))
	for _, r := range rows {
		out[r.Date.Format(types.DateLayout)] = r.Temperature
	}
	return out
}

func StationNames(stations []types.Station) map[string]string {
	out := make(map[string]string, len(stations))
	for _, s := range stations {
		out[s.Code] = s.Name
	}
	return out
}
