// Package providers registers the built-in caption oracle providers.
package providers

import (
	"folio/internal/config"
	"folio/internal/oracle"
	"folio/internal/oracle/claude"
	"folio/internal/oracle/gemini"
	"folio/internal/oracle/openai"
	"folio/internal/port"
)

// Register makes claude, openai and gemini available to oracle.NewOracle.
func Register() {
	oracle.RegisterProvider("claude", func(cfg *config.OracleProviderConfig) (port.CaptionOracle, error) {
		return claude.NewOracle(cfg), nil
	})
	oracle.RegisterProvider("openai", func(cfg *config.OracleProviderConfig) (port.CaptionOracle, error) {
		return openai.NewOracle(cfg), nil
	})
	oracle.RegisterProvider("gemini", func(cfg *config.OracleProviderConfig) (port.CaptionOracle, error) {
		return gemini.NewOracle(cfg), nil
	})
}
