package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-extraction/internal/extraction"
)

// GoogleGeocoder resolves task places through the Google Geocoding API.
type GoogleGeocoder struct {
	apiKey string
}

// geocoder keeps its key in a package variable.
var geocoderMu sync.Mutex

// NewGoogleGeocoder creates a geocoder using apiKey.
func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	return &GoogleGeocoder{apiKey: apiKey}
}

// Resolve returns the coordinates of place.
func (g *GoogleGeocoder) Resolve(ctx context.Context, place extraction.Place) (float64, float64, error) {
	if g.apiKey == "" {
		return 0, 0, fmt.Errorf("geocoder api key is not configured")
	}
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	geocoderMu.Lock()
	defer geocoderMu.Unlock()

	geocoder.ApiKey = g.apiKey
	loc, err := geocoder.Geocoding(geocoder.Address{
		City:    place.City,
		Country: place.Country,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("geocode %s, %s: %w", place.City, place.Country, err)
	}
	return loc.Latitude, loc.Longitude, nil
}
