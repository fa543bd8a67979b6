package warehouse

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/i474232898/weather-etl/internal/weather"
)

// CitiesQuery selects the target cities table of dataset.
func CitiesQuery(dataset string, limit int) string {
	q := fmt.Sprintf("SELECT * FROM `%s.target_cities`", dataset)
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}
	return q
}

// CityDirectory reads target cities (Name, Latitude, Longitude) from a
// BigQuery table, in query order.
type CityDirectory struct {
	client *bigquery.Client
	query  string
}

var _ weather.CityDirectory = (*CityDirectory)(nil)

// NewCityDirectory runs query on every call to Cities.
func NewCityDirectory(client *bigquery.Client, query string) *CityDirectory {
	return &CityDirectory{client: client, query: query}
}

func (d *CityDirectory) Cities(ctx context.Context) ([]weather.City, error) {
	it, err := d.client.Query(d.query).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query target cities: %w", err)
	}

	var cities []weather.City
	for {
		var c weather.City
		err := it.Next(&c)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read target city: %w", err)
		}
		cities = append(cities, c)
	}
	return cities, nil
}
