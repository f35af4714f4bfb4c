package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/ridge/pkg/api"
	"github.com/cuemby/ridge/pkg/collaborators"
	"github.com/cuemby/ridge/pkg/config"
	"github.com/cuemby/ridge/pkg/core"
	"github.com/cuemby/ridge/pkg/events"
	"github.com/cuemby/ridge/pkg/inventory"
	"github.com/cuemby/ridge/pkg/lock"
	"github.com/cuemby/ridge/pkg/log"
	"github.com/cuemby/ridge/pkg/orchestrator"
	"github.com/cuemby/ridge/pkg/reconciler"
	"github.com/cuemby/ridge/pkg/runner"
	"github.com/cuemby/ridge/pkg/security"
	"github.com/cuemby/ridge/pkg/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ridge controller server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		store, err := storage.NewBoltStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open topology store: %w", err)
		}
		defer store.Close()

		secrets, err := security.NewSecretsManagerFromPassphrase(cfg.CredentialKey)
		if err != nil {
			return fmt.Errorf("failed to initialize credential encryption: %w", err)
		}

		registry := events.NewRegistry()
		credentials := collaborators.NewCredentialStore(store, secrets)
		process := collaborators.NewExecPlaybookProcess()
		renderer := inventory.New(cfg.DataDir)

		r := runner.New(store, registry, process, credentials, renderer, cfg.PlaybookDir)
		orch := orchestrator.New(store, r, cfg.DataDir)
		locks := lock.New(store)

		if cfg.LockStartupReconcile {
			if err := reconciler.New(store, locks).Run(); err != nil {
				return fmt.Errorf("startup reconciliation failed: %w", err)
			}
		}

		var analyzer collaborators.Analyzer = collaborators.NoopAnalyzer{}
		if cfg.AnalyzerConfigured() {
			analyzer = collaborators.NewHTTPAnalyzer(cfg.AnalyzerEndpoint, cfg.AnalyzerModel)
		}

		service := core.New(store, locks, registry, orch, analyzer)
		server := api.NewServer(service, store)

		log.Info("ridge controller starting on " + cfg.ListenAddr)
		return server.Start(cfg.ListenAddr)
	},
}
