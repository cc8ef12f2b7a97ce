package resolution

import (
	"time"

	"github.com/shopspring/decimal"
)

var kgPerCentner = decimal.NewFromInt(100)

// Measures are the normalized numeric fields of an entry. Yields are in centners.
type Measures struct {
	WorkedOn        time.Time
	DayArea         float64
	CumulativeArea  *float64
	DayYield        *float64
	CumulativeYield *float64
}

// Normalize converts yields from kilograms to centners, forces a positive day
// area (missing or non-positive becomes 1) and dates the entry by the message
// creation time, never by when the pipeline runs.
func Normalize(e ExtractedEntry, createdAt time.Time, loc *time.Location) Measures {
	m := Measures{
		WorkedOn:        ReportingDate(createdAt, loc),
		DayArea:         1,
		CumulativeArea:  e.AreaTotal,
		DayYield:        KgToCentners(e.YieldKgDay),
		CumulativeYield: KgToCentners(e.YieldKgTotal),
	}
	if e.AreaDay != nil && *e.AreaDay > 0 {
		m.DayArea = *e.AreaDay
	}
	return m
}

// KgToCentners divides by 100. Nil passes through.
func KgToCentners(kg *float64) *float64 {
	if kg == nil {
		return nil
	}
	v := decimal.NewFromFloat(*kg).Div(kgPerCentner).InexactFloat64()
	return &v
}

// ReportingDate is the calendar date of t in loc, as midnight UTC so it stores
// cleanly in a DATE column. A nil loc keeps t's own location.
func ReportingDate(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}
