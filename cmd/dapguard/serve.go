package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dapguard/dapguard/internal/adapters"
	"github.com/dapguard/dapguard/internal/audit"
	"github.com/dapguard/dapguard/internal/config"
	"github.com/dapguard/dapguard/internal/consent"
	"github.com/dapguard/dapguard/internal/dap"
	"github.com/dapguard/dapguard/internal/launchcfg"
	"github.com/dapguard/dapguard/internal/mcp"
	"github.com/dapguard/dapguard/internal/registry"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the debug gateway over stdio",
		Long:  "Starts the MCP server on stdin/stdout. Consent prompts are shown\non the controlling terminal; without one, unapproved launches are denied.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	cmd.Flags().StringSliceVar(&flagWorkspace, "workspace", nil, "workspace folder root (repeatable, first is primary)")
	cmd.Flags().StringVar(&flagAuditLog, "audit-log", "", "audit log file (default: stderr)")

	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if len(flagWorkspace) > 0 {
		cfg.WorkspaceFolders = flagWorkspace
	}
	if len(cfg.WorkspaceFolders) == 0 {
		if cwd, err := os.Getwd(); err == nil {
			cfg.WorkspaceFolders = []string{cwd}
		}
	}
	if flagAuditLog != "" {
		cfg.AuditLogPath = flagAuditLog
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadConfigLenient loads configuration without requiring workspace
// folders. The approvals commands only need the state directory.
func loadConfigLenient() (*config.Config, error) {
	cfg, err := config.LoadConfig(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.StateDir, 0o700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	log, err := audit.New(cfg.AuditLogPath)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer log.Sync()

	store, err := consent.NewFileStore(cfg.StorePath())
	if err != nil {
		return fmt.Errorf("failed to open approval store: %w", err)
	}
	defer store.Close()

	authority := consent.NewAuthority(store, ttyPrompter(), log)
	// The persisted flag wins over the config default once set.
	if !cfg.ConsentRequired && !authority.ConsentConfigured() {
		if err := authority.SetConsentRequired(false); err != nil {
			return err
		}
	}

	configs := launchcfg.NewLoader(cfg.WorkspaceFolders)

	backend := dap.NewBackend(adapters.NewRegistry(cfg), cfg.MaxSessions, log.DiagLogger())
	defer backend.Close()

	reg := registry.New(backend, authority, configs, log)
	defer reg.Close()

	server := mcp.NewServer(reg, log)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		backend.Close()
		log.Sync()
		os.Exit(0)
	}()

	return server.ServeStdio()
}
