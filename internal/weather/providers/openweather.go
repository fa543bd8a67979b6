package providers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-etl/internal/common"
	"github.com/i474232898/weather-etl/internal/tabular"
	"github.com/i474232898/weather-etl/internal/weather"
)

// OpenWeatherClient fetches raw OpenWeatherMap payloads.
type OpenWeatherClient struct {
	name    string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

var _ weather.Fetcher = (*OpenWeatherClient)(nil)

// NewOpenWeatherClient returns a client retrying with backoff.
func NewOpenWeatherClient(client *http.Client, backoff BackoffConfig) *OpenWeatherClient {
	return &OpenWeatherClient{
		name: "openweathermap",
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: backoff,
		},
		circuit: newCircuitBreaker("openweather"),
	}
}

func (c *OpenWeatherClient) Name() string {
	return c.name
}

// Fetch GETs rawURL and decodes the body. Any non-2xx answer left after
// retries yields a nil payload and no error.
func (c *OpenWeatherClient) Fetch(ctx context.Context, rawURL string) (tabular.Payload, error) {
	buildRequest := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, rawURL, nil)
	}

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			log.Printf("INFO: %s: %s answered %d", c.name, common.RedactURL(rawURL, "appid"), se.Code)
			return nil, nil
		}
		var ue *url.Error
		if errors.As(err, &ue) {
			ue.URL = common.RedactURL(ue.URL, "appid")
		}
		return nil, err
	}
	defer resp.Body.Close()

	return tabular.Decode(resp.Body)
}
