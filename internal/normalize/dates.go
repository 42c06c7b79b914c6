package normalize

import (
	"fmt"
	"strconv"
	"time"
)

// dateFormats are tried in order. Venue APIs mix RFC3339 variants with
// plain dates and two regional slash formats.
var dateFormats = []string{
	"2006-01-02T15:04:05.999999Z",
	"2006-01-02T15:04:05Z",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
}

// Accepted date range relative to now.
const (
	maxPastDays   = 365
	maxFutureDays = 1095
)

// parseDate parses a venue timestamp. Accepts the known layouts plus
// unix seconds, and rejects dates outside [now-365d, now+1095d].
func parseDate(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	var parsed time.Time
	var ok bool
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		parsed, ok = time.Unix(secs, 0).UTC(), true
	} else {
		for _, layout := range dateFormats {
			if t, err := time.Parse(layout, s); err == nil {
				parsed, ok = t.UTC(), true
				break
			}
		}
	}
	if !ok {
		return time.Time{}, fmt.Errorf("unrecognized date %q", s)
	}

	earliest := now.AddDate(0, 0, -maxPastDays)
	latest := now.AddDate(0, 0, maxFutureDays)
	if parsed.Before(earliest) || parsed.After(latest) {
		return time.Time{}, fmt.Errorf("date %s outside accepted range", parsed.Format(time.RFC3339))
	}
	return parsed, nil
}
