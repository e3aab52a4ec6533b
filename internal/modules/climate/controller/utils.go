package controller

import (
	"fmt"
	"net/http"
	"time"

	"surfsup-server/internal/modules/climate/types"
)

// parseDateParam reads a YYYY-MM-DD path value.
func parseDateParam(r *http.Request, name string) (time.Time, error) {
	raw := r.PathValue(name)
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing '%s' date", name)
	}
	t, err := time.Parse(types.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid '%s' date %q (expected YYYY-MM-DD)", name, raw)
	}
	return t, nil
}

func parseRangeParams(r *http.Request) (start time.Time, end time.Time, err error) {
	start, err = parseDateParam(r, "start")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err = parseDateParam(r, "end")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("'start' (%s) must be on or before 'end' (%s)",
			start.Format(types.DateLayout), end.Format(types.DateLayout))
	}
	return start, end, nil
}
