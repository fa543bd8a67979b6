package weather

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/weather-etl/internal/tabular"
)

// Rename maps a flattened column onto its public name.
type Rename struct {
	From string
	To   string
}

// Feed is one of the two supported payload shapes together with the rules
// that turn it into report rows.
type Feed struct {
	// Name keys the output directory and the API routes.
	Name string
	// Endpoint is the API path under the base URL.
	Endpoint string
	// Table is the default warehouse table.
	Table string

	Record       tabular.Record
	Columns      tabular.ColumnSpec
	Renames      []Rename
	EpochColumns []string

	entries func(tabular.Payload) ([]tabular.Payload, error)
	inject  func(tabular.Payload) (*tabular.Row, error)
}

var weatherKeys = []string{"id", "main", "description", "icon"}

// CurrentFeed is the current-conditions feed; the payload is a single entry.
var CurrentFeed = Feed{
	Name:     "current",
	Endpoint: "weather",
	Table:    "current_test",
	Record:   tabular.Record{Path: "weather", Prefix: "weather_", Keys: weatherKeys},
	Columns: tabular.ColumnSpec{
		tabular.Scalar("base"),
		tabular.Scalar("visibility"),
		tabular.Scalar("dt"),
		tabular.Scalar("timezone"),
		tabular.Scalar("id"),
		tabular.Scalar("name"),
		tabular.Scalar("cod"),
		tabular.Path("coord", "lon"),
		tabular.Path("coord", "lat"),
		tabular.Path("main", "temp"),
		tabular.Path("main", "feels_like"),
		tabular.Path("main", "temp_min"),
		tabular.Path("main", "temp_max"),
		tabular.Path("main", "pressure"),
		tabular.Path("main", "humidity"),
		tabular.Path("wind", "speed"),
		tabular.Path("wind", "deg"),
		tabular.Path("wind", "gust"),
		tabular.Path("clouds", "all"),
		tabular.Path("sys", "type"),
		tabular.Path("sys", "id"),
		tabular.Path("sys", "country"),
		tabular.Path("sys", "sunrise"),
		tabular.Path("sys", "sunset"),
	},
	Renames: []Rename{
		{"dt", "date_unix"},
		{"pop", "precipitation_probability"},
		{"wind_deg", "wind_direction"},
		{"sys_sunrise", "sunrise"},
		{"sys_sunset", "sunset"},
		{"sys_country", "country"},
		{"coord_lon", "longitude"},
		{"coord_lat", "latitude"},
	},
	EpochColumns: []string{"sunrise", "sunset", "date_unix"},
	entries:      singleEntry,
}

// ForecastFeed is the 5 day / 3 hour forecast feed; entries live under
// "list" and city details under "city".
var ForecastFeed = Feed{
	Name:     "forecast",
	Endpoint: "forecast",
	Table:    "forecast_test",
	Record:   tabular.Record{Path: "weather", Prefix: "main_", Keys: weatherKeys},
	Columns: tabular.ColumnSpec{
		tabular.Scalar("dt"),
		tabular.Scalar("dt_txt"),
		tabular.Scalar("visibility"),
		tabular.Path("main", "temp"),
		tabular.Path("main", "feels_like"),
		tabular.Path("main", "temp_min"),
		tabular.Path("main", "temp_max"),
		tabular.Path("main", "pressure"),
		tabular.Path("main", "sea_level"),
		tabular.Path("main", "grnd_level"),
		tabular.Path("main", "humidity"),
		tabular.Path("main", "temp_kf"),
		tabular.Scalar("pop"),
		tabular.Path("clouds", "all"),
		tabular.Path("rain", "3h"),
		tabular.Path("sys", "pod"),
		tabular.Path("wind", "speed"),
		tabular.Path("wind", "deg"),
		tabular.Path("wind", "gust"),
	},
	Renames: []Rename{
		{"sys_pod", "part_of_day"},
		{"dt", "date_unix"},
		{"dt_txt", "date_text"},
		{"pop", "precipitation_probability"},
		{"wind_deg", "wind_direction"},
		{"main_main", "weather"},
		{"main_sea_level", "sea_level_pressure"},
		{"main_grnd_level", "ground_level_pressure"},
	},
	EpochColumns: []string{"date_unix"},
	entries:      listEntries,
	inject:       cityColumns,
}

// Feeds lists every supported feed.
var Feeds = []Feed{CurrentFeed, ForecastFeed}

// FeedByName looks a feed up by its name.
func FeedByName(name string) (Feed, error) {
	for _, f := range Feeds {
		if f.Name == name {
			return f, nil
		}
	}
	return Feed{}, fmt.Errorf("%w: %q", ErrUnknownFeed, name)
}

// URL builds the request URL for city.
func (f Feed) URL(baseURL, apiKey, units string, city City) string {
	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(city.Latitude, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(city.Longitude, 'f', -1, 64))
	values.Set("appid", apiKey)
	if units != "" {
		values.Set("units", units)
	}
	return fmt.Sprintf("%s/%s?%s", strings.TrimRight(baseURL, "/"), f.Endpoint, values.Encode())
}

// Flatten turns payload into flat rows.
func (f Feed) Flatten(payload tabular.Payload) ([]*tabular.Row, error) {
	entries, err := f.entries(payload)
	if err != nil {
		return nil, err
	}
	return tabular.Flatten(entries, f.Record, f.Columns), nil
}

// Process flattens and enriches payload into a table.
func (f Feed) Process(payload tabular.Payload, extractedAt time.Time) (*tabular.Table, error) {
	rows, err := f.Flatten(payload)
	if err != nil {
		return nil, err
	}
	rows, err = f.Enrich(rows, payload, extractedAt)
	if err != nil {
		return nil, err
	}
	return tabular.NewTable(rows...), nil
}

func singleEntry(p tabular.Payload) ([]tabular.Payload, error) {
	return []tabular.Payload{p}, nil
}

func listEntries(p tabular.Payload) ([]tabular.Payload, error) {
	if _, ok := p["city"]; !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrMalformedPayload, "city")
	}
	entries, ok := p.Objects("list")
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrMalformedPayload, "list")
	}
	return entries, nil
}
