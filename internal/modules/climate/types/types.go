package types

import "time"

// DateLayout is how the store and the API spell dates.
const DateLayout = "2006-01-02"

type Station struct {
	Code string `json:"station"`
	Name string `json:"name"`
}

// Measurement is one station-day row. Precipitation is nil when the store
// holds NULL for prcp.
type Measurement struct {
	Station       string
	Date          time.Time
	Precipitation *float64
	Temperature   float64
}

// MeasurementFilter narrows a measurement query. Nil bounds and an empty
// Station are ignored; 0001-01-01 is a real bound, not "unset".
type MeasurementFilter struct {
	After   *time.Time // date > After
	From    *time.Time // date >= From
	To      *time.Time // date <= To
	Station string
}

type TemperatureSummary struct {
	Minimum float64 `json:"Minimum"`
	Maximum float64 `json:"Maximum"`
	Average float64 `json:"Average"`
}
