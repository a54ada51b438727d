package providers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"skycast/weather"
)

// ProviderManager orders providers by priority and fails over between them.
type ProviderManager struct {
	providers           []DataProvider
	primary             DataProvider
	health              map[string]bool
	healthMu            sync.RWMutex
	healthCheckInterval time.Duration
	stopChan            chan struct{}
	stopOnce            sync.Once
	mu                  sync.RWMutex
}

// NewProviderManager creates an empty manager with default health checking.
func NewProviderManager() *ProviderManager {
	return &ProviderManager{
		providers:           make([]DataProvider, 0),
		health:              make(map[string]bool),
		healthCheckInterval: 30 * time.Second,
		stopChan:            make(chan struct{}),
	}
}

// AddProvider registers a provider. The highest priority becomes primary.
func (pm *ProviderManager) AddProvider(provider DataProvider) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.providers = append(pm.providers, provider)

	pm.healthMu.Lock()
	pm.health[provider.Name()] = true
	pm.healthMu.Unlock()

	if pm.primary == nil || provider.Priority() > pm.primary.Priority() {
		pm.primary = provider
	}
}

// SetPrimaryProvider selects the primary provider by name.
func (pm *ProviderManager) SetPrimaryProvider(name string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	for _, provider := range pm.providers {
		if provider.Name() == name {
			pm.primary = provider
			return nil
		}
	}

	return ErrProviderNotFound
}

// FetchCurrent fetches live conditions, falling back across providers.
func (pm *ProviderManager) FetchCurrent(ctx context.Context, city string) (*weather.Observation, error) {
	pm.mu.RLock()
	providers := make([]DataProvider, len(pm.providers))
	copy(providers, pm.providers)
	primary := pm.primary
	pm.mu.RUnlock()

	if primary != nil {
		obs, err := primary.FetchCurrent(ctx, city)
		if err == nil {
			return obs, nil
		}
		if err == ErrCityNotFound {
			return nil, err
		}
		zap.L().Warn("primary provider failed, trying fallbacks",
			zap.String("provider", primary.Name()), zap.Error(err))
	}

	for _, provider := range providers {
		if provider == primary {
			continue
		}
		if !pm.isHealthy(provider.Name()) {
			continue
		}
		obs, err := provider.FetchCurrent(ctx, city)
		if err == nil {
			zap.L().Info("using fallback provider",
				zap.String("provider", provider.Name()), zap.String("city", city))
			return obs, nil
		}
		if err == ErrCityNotFound {
			return nil, err
		}
		zap.L().Warn("fallback provider failed",
			zap.String("provider", provider.Name()), zap.Error(err))
	}

	return nil, ErrAllProvidersFailed
}

// FetchHistory fetches historical observations, falling back across providers.
func (pm *ProviderManager) FetchHistory(ctx context.Context, city string, days int) ([]weather.Observation, error) {
	pm.mu.RLock()
	providers := make([]DataProvider, len(pm.providers))
	copy(providers, pm.providers)
	primary := pm.primary
	pm.mu.RUnlock()

	if primary != nil {
		history, err := primary.FetchHistory(ctx, city, days)
		if err == nil && len(history) > 0 {
			return history, nil
		}
		if err != nil {
			zap.L().Warn("primary provider failed, trying fallbacks",
				zap.String("provider", primary.Name()), zap.Error(err))
		}
	}

	for _, provider := range providers {
		if provider == primary {
			continue
		}
		if !pm.isHealthy(provider.Name()) {
			continue
		}
		history, err := provider.FetchHistory(ctx, city, days)
		if err == nil && len(history) > 0 {
			zap.L().Info("using fallback provider",
				zap.String("provider", provider.Name()), zap.String("city", city))
			return history, nil
		}
		if err != nil {
			zap.L().Warn("fallback provider failed",
				zap.String("provider", provider.Name()), zap.Error(err))
		}
	}

	return nil, ErrAllProvidersFailed
}

func (pm *ProviderManager) isHealthy(name string) bool {
	pm.healthMu.RLock()
	defer pm.healthMu.RUnlock()
	return pm.health[name]
}

// StartHealthChecks launches a monitor goroutine per registered provider.
func (pm *ProviderManager) StartHealthChecks() {
	pm.mu.RLock()
	providers := make([]DataProvider, len(pm.providers))
	copy(providers, pm.providers)
	pm.mu.RUnlock()

	for _, provider := range providers {
		go pm.monitorProvider(provider)
	}
}

func (pm *ProviderManager) monitorProvider(provider DataProvider) {
	ticker := time.NewTicker(pm.healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := provider.HealthCheck()
			pm.healthMu.Lock()
			if err != nil {
				pm.health[provider.Name()] = false
				zap.L().Warn("provider health check failed",
					zap.String("provider", provider.Name()), zap.Error(err))
			} else {
				pm.health[provider.Name()] = true
			}
			pm.healthMu.Unlock()

		case <-pm.stopChan:
			return
		}
	}
}

// StopHealthChecks stops all monitor goroutines.
func (pm *ProviderManager) StopHealthChecks() {
	pm.stopOnce.Do(func() { close(pm.stopChan) })
}

// GetProvidersStatus reports per-provider health.
func (pm *ProviderManager) GetProvidersStatus() map[string]bool {
	pm.healthMu.RLock()
	defer pm.healthMu.RUnlock()

	status := make(map[string]bool)
	for name, healthy := range pm.health {
		status[name] = healthy
	}
	return status
}

// GetPrimaryProvider returns the current primary provider name.
func (pm *ProviderManager) GetPrimaryProvider() string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	if pm.primary == nil {
		return ""
	}
	return pm.primary.Name()
}
