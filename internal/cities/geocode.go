package cities

import (
	"errors"
	"log"
	"sync"

	"github.com/kelvins/geocoder"
)

// Geocoder resolves a city name to coordinates.
type Geocoder interface {
	Geocode(city, country string) (lat, lon float64, err error)
}

// GoogleGeocoder uses the Google Geocoding API through kelvins/geocoder.
type GoogleGeocoder struct {
	apiKey string
}

// The geocoder package keeps its key in a package variable.
var geocoderMu sync.Mutex

// NewGoogleGeocoder returns nil when apiKey is empty.
func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	if apiKey == "" {
		return nil
	}
	return &GoogleGeocoder{apiKey: apiKey}
}

func (g *GoogleGeocoder) Geocode(city, country string) (float64, float64, error) {
	if city == "" {
		return 0, 0, errors.New("city name is required")
	}

	geocoderMu.Lock()
	defer geocoderMu.Unlock()

	geocoder.ApiKey = g.apiKey
	loc, err := geocoder.Geocoding(geocoder.Address{
		City:    city,
		Country: country,
	})
	if err != nil {
		return 0, 0, err
	}
	log.Printf("DEBUG: geocoded %s,%s to %f,%f", city, country, loc.Latitude, loc.Longitude)
	return loc.Latitude, loc.Longitude, nil
}
