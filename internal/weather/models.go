package weather

import (
	"errors"
	"strconv"
	"time"
)

var (
	// ErrFetchFailed marks a city whose payload could not be retrieved. The
	// city is skipped.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrMalformedPayload is returned when a structural key the feed depends
	// on is missing from the payload.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrUnknownFeed is returned for a feed name that is not configured.
	ErrUnknownFeed = errors.New("unknown feed")

	// ErrRunInProgress is returned when a feed is triggered while a previous
	// run of the same feed has not finished.
	ErrRunInProgress = errors.New("run already in progress")
)

// City is one target location driving a run.
// Country is only used to geocode cities listed without coordinates.
type City struct {
	Name      string  `json:"name" yaml:"name" bigquery:"Name" validate:"required"`
	Country   string  `json:"country,omitempty" yaml:"country" bigquery:"-"`
	Latitude  float64 `json:"latitude" yaml:"latitude" bigquery:"Latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" yaml:"longitude" bigquery:"Longitude" validate:"min=-180,max=180"`
}

// Key returns a readable identifier used in logs.
func (c City) Key() string {
	return c.Name + "@" + strconv.FormatFloat(c.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}

// RunStatus is the outcome of one feed run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunEmpty     RunStatus = "empty"
	RunFailed    RunStatus = "failed"
)

// RunSummary records what a single run produced.
type RunSummary struct {
	ID             string    `json:"id"`
	Feed           string    `json:"feed"`
	StartedAt      time.Time `json:"startedAt"` // doubles as the extraction timestamp
	FinishedAt     time.Time `json:"finishedAt"`
	Cities         int       `json:"cities"`
	CitiesWithData int       `json:"citiesWithData"`
	Rows           int       `json:"rows"`
	LocalPath      string    `json:"localPath,omitempty"`
	ObjectURI      string    `json:"objectUri,omitempty"`
	Table          string    `json:"table,omitempty"`
	LoadedRows     int64     `json:"loadedRows"`
	Status         RunStatus `json:"status"`
	Error          string    `json:"error,omitempty"`
}
