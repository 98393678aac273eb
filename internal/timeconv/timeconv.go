package timeconv

import (
	"fmt"
	"time"

	"github.com/KhavKivar/piwebapi-etl/internal/model"
)

// LocalFormat is the site-local layout written into records. No offset
// suffix: the value is only meaningful together with the site.
const LocalFormat = "2006-01-02T15:04:05"

// Load resolves an IANA timezone name against the zone database. A missing
// zone is an environment problem, fatal to the calling fetch.
func Load(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone data not found for %q: %v", model.ErrConfiguration, name, err)
	}
	return loc, nil
}

// ToSiteLocal converts a UTC timestamp to the site's local timezone. The
// input must carry a zero UTC offset and must not be the zero value (the
// closest Go analog of a naive timestamp).
func ToSiteLocal(utc time.Time, loc *time.Location) (time.Time, error) {
	if utc.IsZero() {
		return time.Time{}, fmt.Errorf("%w: zero timestamp; pass an aware UTC time", model.ErrInvalidInput)
	}
	if _, offset := utc.Zone(); offset != 0 {
		return time.Time{}, fmt.Errorf("%w: timestamp offset %ds is not UTC", model.ErrInvalidInput, offset)
	}
	return utc.In(loc), nil
}

// LocalString converts a remote UTC timestamp string to the site-local
// LocalFormat string. Malformed input degrades to "" rather than failing the
// frame that carries it.
func LocalString(utcStr string, loc *time.Location) string {
	if utcStr == "" || loc == nil {
		return ""
	}
	t, err := time.Parse(time.RFC3339Nano, utcStr)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, utcStr); err != nil {
			return ""
		}
	}
	local, err := ToSiteLocal(t, loc)
	if err != nil {
		return ""
	}
	return local.Format(LocalFormat)
}
