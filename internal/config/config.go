// Package config loads and validates the application's settings, read
// through viper from the config file, environment, and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ledgerline/reconcile/internal/common"
	"github.com/ledgerline/reconcile/internal/engine"
	"github.com/ledgerline/reconcile/internal/policy"
	"github.com/ledgerline/reconcile/internal/retriever"
	"github.com/ledgerline/reconcile/internal/score"
)

// Matching holds every tunable of the scoring and decision pipeline.
// Invalid values are rejected at load time; nothing downstream re-validates.
type Matching struct {
	Weights    score.Weights
	Thresholds policy.Thresholds
	TopK       int
	Timeout    time.Duration
	Workers    int
	QueueDepth int
}

// SetDefaults registers the default values for every key this package
// reads. Call once before the config file is loaded.
func SetDefaults() {
	weights := score.DefaultWeights()
	thresholds := policy.DefaultThresholds()
	retrieval := retriever.DefaultConfig()

	viper.SetDefault("database.path", "~/.local/share/reconcile/reconcile.db")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	viper.SetDefault("matching.weights.similarity", weights.Similarity)
	viper.SetDefault("matching.weights.amount", weights.Amount)
	viper.SetDefault("matching.weights.date", weights.Date)
	viper.SetDefault("matching.thresholds.suggest", thresholds.Suggest)
	viper.SetDefault("matching.thresholds.auto_match", thresholds.AutoMatch)
	viper.SetDefault("matching.thresholds.margin", thresholds.Margin)
	viper.SetDefault("matching.max_suggestions", thresholds.MaxSuggestions)
	viper.SetDefault("matching.top_k", retrieval.TopK)
	viper.SetDefault("matching.timeout", retrieval.Timeout)
	viper.SetDefault("matching.workers", 4)
	viper.SetDefault("matching.queue_depth", 256)
}

// LoadMatching reads and validates the matching configuration.
func LoadMatching() (Matching, error) {
	m := Matching{
		Weights: score.Weights{
			Similarity: viper.GetFloat64("matching.weights.similarity"),
			Amount:     viper.GetFloat64("matching.weights.amount"),
			Date:       viper.GetFloat64("matching.weights.date"),
		},
		Thresholds: policy.Thresholds{
			Suggest:        viper.GetFloat64("matching.thresholds.suggest"),
			AutoMatch:      viper.GetFloat64("matching.thresholds.auto_match"),
			Margin:         viper.GetFloat64("matching.thresholds.margin"),
			MaxSuggestions: viper.GetInt("matching.max_suggestions"),
		},
		TopK:       viper.GetInt("matching.top_k"),
		Timeout:    viper.GetDuration("matching.timeout"),
		Workers:    viper.GetInt("matching.workers"),
		QueueDepth: viper.GetInt("matching.queue_depth"),
	}

	if err := m.Validate(); err != nil {
		return Matching{}, err
	}
	return m, nil
}

// Validate checks every matching tunable.
func (m Matching) Validate() error {
	if err := m.Weights.Validate(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	if err := m.Thresholds.Validate(); err != nil {
		return err
	}
	if m.TopK < 1 {
		return fmt.Errorf("%w: matching.top_k must be at least 1, got %d", common.ErrInvalidConfig, m.TopK)
	}
	if m.Timeout <= 0 {
		return fmt.Errorf("%w: matching.timeout must be positive, got %v", common.ErrInvalidConfig, m.Timeout)
	}
	if m.Workers < 1 {
		return fmt.Errorf("%w: matching.workers must be at least 1, got %d", common.ErrInvalidConfig, m.Workers)
	}
	if m.QueueDepth < 1 {
		return fmt.Errorf("%w: matching.queue_depth must be at least 1, got %d", common.ErrInvalidConfig, m.QueueDepth)
	}
	return nil
}

// EngineConfig converts the matching settings into an engine configuration.
func (m Matching) EngineConfig() engine.Config {
	return engine.Config{
		Weights:    m.Weights,
		Thresholds: m.Thresholds,
	}
}

// RetrieverConfig converts the matching settings into a retriever
// configuration.
func (m Matching) RetrieverConfig() retriever.Config {
	return retriever.Config{
		TopK:    m.TopK,
		Timeout: m.Timeout,
	}
}

// DatabasePath returns the configured database location with ~ and
// environment variables expanded. An empty path is a configuration error:
// there is no sensible place to fall back to once the default is overridden.
func DatabasePath() (string, error) {
	path := ExpandPath(viper.GetString("database.path"))
	if path == "" {
		return "", fmt.Errorf("%w: database.path", common.ErrMissingConfig)
	}
	return path, nil
}

// ExpandPath resolves a leading ~ to the user's home directory and expands
// $VAR environment references in a file path.
func ExpandPath(path string) string {
	switch {
	case path == "~":
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	case strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}
