// Package providers implements upstream weather data sources with failover.
package providers

import (
	"context"

	"skycast/weather"
)

// DataProvider is a source of live and historical weather observations.
type DataProvider interface {
	Name() string
	FetchCurrent(ctx context.Context, city string) (*weather.Observation, error)
	FetchHistory(ctx context.Context, city string, days int) ([]weather.Observation, error)
	HealthCheck() error
	Priority() int
}

var (
	ErrProviderNotFound   = &ProviderError{Code: "provider_not_found", Message: "data provider not found"}
	ErrAllProvidersFailed = &ProviderError{Code: "all_providers_failed", Message: "all data providers failed"}
	ErrCityNotFound       = &ProviderError{Code: "city_not_found", Message: "city not found"}
)

// ProviderError is a provider-layer error with a stable code.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return e.Message
}
