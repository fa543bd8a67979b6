package tabular

import (
	"math"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// DateTimeLayout is the "YYYY-MM-DD HH:MM:SS" text form used for injected
// timestamps.
const DateTimeLayout = "2006-01-02 15:04:05"

// EpochSeconds interprets v as seconds since the UNIX epoch. Fractional
// seconds are kept. Nil, non-numeric and non-finite values report false.
func EpochSeconds(v any) (time.Time, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return time.Unix(i, 0).UTC(), true
		}
		parsed, err := n.Float64()
		if err != nil {
			return time.Time{}, false
		}
		f = parsed
	case int:
		return time.Unix(int64(n), 0).UTC(), true
	case int64:
		return time.Unix(n, 0).UTC(), true
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return time.Time{}, false
		}
		f = parsed
	default:
		return time.Time{}, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC(), true
}

// ConvertEpoch replaces the value of col with its UTC time.Time. Values that
// cannot be interpreted become nil. Absent columns are left alone.
func (r *Row) ConvertEpoch(col string) {
	v, ok := r.vals[col]
	if !ok {
		return
	}
	if ts, ok := EpochSeconds(v); ok {
		r.vals[col] = ts
		return
	}
	r.vals[col] = nil
}
