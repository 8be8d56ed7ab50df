package oracle

import (
	"fmt"

	"go.uber.org/zap"

	"folio/internal/config"
	"folio/internal/port"
)

// ProviderFactory creates a CaptionOracle from a provider config.
type ProviderFactory func(cfg *config.OracleProviderConfig) (port.CaptionOracle, error)

// registry of oracle provider factories, populated via RegisterProvider by
// the binaries that link the provider packages.
var providers = map[string]ProviderFactory{}

// RegisterProvider registers an oracle provider factory by name.
func RegisterProvider(name string, factory ProviderFactory) {
	providers[name] = factory
}

// NewOracle creates a CaptionOracle from a provider config using the registered factory.
func NewOracle(cfg *config.OracleProviderConfig) (port.CaptionOracle, error) {
	factory, ok := providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown oracle provider: %s", cfg.Provider)
	}
	return factory(cfg)
}

// NewChain builds the configured providers into a fallback chain. It returns
// nil when no provider is configured.
func NewChain(cfg *config.OracleConfig, log *zap.Logger) (port.CaptionOracle, error) {
	provs := cfg.Providers()
	if len(provs) == 0 {
		return nil, nil
	}
	oracles := make([]port.CaptionOracle, 0, len(provs))
	names := make([]string, 0, len(provs))
	for _, p := range provs {
		o, err := NewOracle(p)
		if err != nil {
			return nil, fmt.Errorf("oracle.NewChain: %w", err)
		}
		oracles = append(oracles, o)
		names = append(names, p.Provider)
	}
	if len(oracles) == 1 {
		return oracles[0], nil
	}
	return NewFallbackOracle(oracles, names, log), nil
}
