package cities

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/weather-etl/internal/weather"
)

var validate = validator.New()

// ErrNoCoordinates is returned for a city listed without coordinates when no
// geocoder is available.
var ErrNoCoordinates = errors.New("city has no coordinates")

// fileCity is one entry of the cities file. Coordinates are optional when a
// geocoder is configured.
type fileCity struct {
	Name      string   `yaml:"name"`
	Country   string   `yaml:"country"`
	Latitude  *float64 `yaml:"latitude"`
	Longitude *float64 `yaml:"longitude"`
}

type fileDocument struct {
	Cities []fileCity `yaml:"cities"`
}

// FileDirectory reads target cities from a YAML file:
//
//	cities:
//	  - name: Davao City
//	    latitude: 7.0648306
//	    longitude: 125.6080623
//	  - name: Cebu City
//	    country: PH
type FileDirectory struct {
	path     string
	limit    int
	geocoder Geocoder
}

var _ weather.CityDirectory = (*FileDirectory)(nil)

// NewFileDirectory returns a directory backed by path. geocoder may be nil.
// A positive limit keeps only the first limit cities.
func NewFileDirectory(path string, limit int, geocoder Geocoder) *FileDirectory {
	return &FileDirectory{path: path, limit: limit, geocoder: geocoder}
}

// Cities re-reads the file on every call so edits apply to the next run.
func (d *FileDirectory) Cities(ctx context.Context) ([]weather.City, error) {
	f, err := os.Open(d.path)
	if err != nil {
		return nil, fmt.Errorf("open cities file: %w", err)
	}
	defer f.Close()

	var doc fileDocument
	if err := yaml.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse cities file %s: %w", d.path, err)
	}

	entries := doc.Cities
	if d.limit > 0 && len(entries) > d.limit {
		entries = entries[:d.limit]
	}

	out := make([]weather.City, 0, len(entries))
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := d.resolve(e)
		if err != nil {
			return nil, fmt.Errorf("city %d (%s): %w", i, e.Name, err)
		}
		if err := validate.Struct(c); err != nil {
			return nil, fmt.Errorf("city %d (%s): %w", i, e.Name, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (d *FileDirectory) resolve(e fileCity) (weather.City, error) {
	c := weather.City{Name: e.Name, Country: e.Country}
	if e.Latitude != nil && e.Longitude != nil {
		c.Latitude, c.Longitude = *e.Latitude, *e.Longitude
		return c, nil
	}
	if d.geocoder == nil {
		return c, ErrNoCoordinates
	}

	lat, lon, err := d.geocoder.Geocode(e.Name, e.Country)
	if err != nil {
		return c, fmt.Errorf("geocode: %w", err)
	}
	c.Latitude, c.Longitude = lat, lon
	return c, nil
}
