package weather

import (
	"fmt"
	"log"
	"time"

	"github.com/i474232898/weather-etl/internal/tabular"
)

// ExtractedColumn carries the run start time on every row.
const ExtractedColumn = "datetime_extracted"

// Enrich applies the feed's rules to rows in place: inject feed metadata,
// stamp the extraction time, normalize column names, rename, then convert
// epoch columns.
func (f Feed) Enrich(rows []*tabular.Row, payload tabular.Payload, extractedAt time.Time) ([]*tabular.Row, error) {
	var injected *tabular.Row
	if f.inject != nil {
		var err error
		injected, err = f.inject(payload)
		if err != nil {
			return nil, err
		}
	}

	stamp := extractedAt.Format(tabular.DateTimeLayout)
	for _, row := range rows {
		if injected != nil {
			row.Merge(injected)
		}
		row.Set(ExtractedColumn, stamp)

		if collided := row.NormalizeColumns(); len(collided) > 0 {
			log.Printf("WARN: %s feed: columns collapsed after normalization: %v", f.Name, collided)
		}
		for _, rn := range f.Renames {
			row.Rename(rn.From, rn.To)
		}
		for _, col := range f.EpochColumns {
			row.ConvertEpoch(col)
		}
	}
	return rows, nil
}

// cityColumns builds the forecast city columns from payload.city. Sunrise and
// sunset are kept as UTC text, unlike the datetime columns of the rows.
func cityColumns(payload tabular.Payload) (*tabular.Row, error) {
	city, ok := payload.Object("city")
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrMalformedPayload, "city")
	}

	lookup := func(f tabular.Field) any {
		v, _ := f.Resolve(city)
		return v
	}

	row := tabular.NewRow()
	row.Set("city", lookup(tabular.Scalar("name")))
	row.Set("latitude", lookup(tabular.Path("coord", "lat")))
	row.Set("longitude", lookup(tabular.Path("coord", "lon")))
	row.Set("country", lookup(tabular.Scalar("country")))
	row.Set("timezone", lookup(tabular.Scalar("timezone")))
	row.Set("sunrise", epochText(lookup(tabular.Scalar("sunrise"))))
	row.Set("sunset", epochText(lookup(tabular.Scalar("sunset"))))
	return row, nil
}

func epochText(v any) any {
	ts, ok := tabular.EpochSeconds(v)
	if !ok {
		return nil
	}
	return ts.Format(tabular.DateTimeLayout)
}
