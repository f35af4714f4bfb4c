// Package config loads ridge's process-wide configuration from the
// environment, following the same struct-tag loader used elsewhere in the
// retrieval pack for services that are not purely CLI-flag driven.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config is ridge's environment-driven configuration. cmd/ridgectl loads
// this once at process start; no command-line flag overrides its fields.
type Config struct {
	DataDir         string `envconfig:"RIDGE_DATA_DIR" default:"/var/lib/ridge"`
	CredentialKey   string `envconfig:"RIDGE_CREDENTIAL_KEY" required:"true"`
	AnalyzerEndpoint string `envconfig:"RIDGE_ANALYZER_ENDPOINT"`
	AnalyzerModel   string `envconfig:"RIDGE_ANALYZER_MODEL"`
	ListenAddr      string `envconfig:"RIDGE_LISTEN_ADDR" default:"0.0.0.0:8080"`
	PlaybookDir     string `envconfig:"RIDGE_PLAYBOOK_DIR" default:"/etc/ridge/playbooks"`
	LockStartupReconcile bool `envconfig:"RIDGE_LOCK_STARTUP_RECONCILE" default:"true"`
}

// Load reads configuration from the environment. A missing
// RIDGE_CREDENTIAL_KEY is a startup error: without it the credential store
// cannot encrypt or decrypt anything already on disk.
func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process("ridge", &c); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return &c, nil
}

// AnalyzerConfigured reports whether an analyzer endpoint was supplied.
// When it is false the controller uses collaborators.NoopAnalyzer: a
// successful check then gets a Go verdict and an AnalyzerSummary that
// carries only the "no analyzer configured" warning.
func (c *Config) AnalyzerConfigured() bool {
	return c.AnalyzerEndpoint != ""
}
