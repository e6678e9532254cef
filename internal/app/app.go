// Package app wires configuration, storage, clients, and services together.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/salesdiver/hublink/internal/clients/hubspot"
	"github.com/salesdiver/hublink/internal/common"
	"github.com/salesdiver/hublink/internal/interfaces"
	"github.com/salesdiver/hublink/internal/services/auth"
	"github.com/salesdiver/hublink/internal/services/sync"
	"github.com/salesdiver/hublink/internal/storage/localdb"
	"github.com/salesdiver/hublink/internal/storage/tokendb"
)

// App holds all initialized services, clients, and stores.
// It is the shared core used by cmd/hublink-server.
type App struct {
	Config        *common.Config
	Logger        *common.Logger
	TokenStore    *tokendb.Store
	LocalStore    interfaces.LocalStore
	HubSpotClient interfaces.HubSpotClient
	AuthService   interfaces.AuthService
	SyncService   interfaces.SyncService
	StartupTime   time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes configuration, storage, clients, and services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	common.LoadVersionFromFile()

	binDir := getBinaryDir()

	// Load configuration - check provided path, HUBLINK_CONFIG, then binary
	// dir, then fallback
	if configPath == "" {
		configPath = os.Getenv("HUBLINK_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "hublink.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/hublink.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative storage paths to the binary directory
	if config.Storage.Tokens.Path != "" && !filepath.IsAbs(config.Storage.Tokens.Path) {
		config.Storage.Tokens.Path = filepath.Join(binDir, config.Storage.Tokens.Path)
	}
	if config.Storage.Local.Path != "" && !filepath.IsAbs(config.Storage.Local.Path) {
		config.Storage.Local.Path = filepath.Join(binDir, config.Storage.Local.Path)
	}

	logger := common.NewLogger(config.Logging.Level)

	tokenStore, err := tokendb.NewStore(logger, config.Storage.Tokens.Path, "hubspot")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token store: %w", err)
	}

	localStore, err := localdb.NewStore(logger, config.Storage.Local.Path)
	if err != nil {
		tokenStore.Close()
		return nil, fmt.Errorf("failed to initialize local store: %w", err)
	}

	authService := auth.NewService(config.HubSpot, tokenStore,
		auth.WithLogger(logger),
	)

	hubspotClient := hubspot.NewClient(authService,
		hubspot.WithBaseURL(config.HubSpot.BaseURL),
		hubspot.WithLogger(logger),
		hubspot.WithRateLimit(config.HubSpot.RateLimit),
		hubspot.WithTimeout(config.HubSpot.GetTimeout()),
	)

	syncService := sync.NewService(localStore, hubspotClient, authService, logger)

	return &App{
		Config:        config,
		Logger:        logger,
		TokenStore:    tokenStore,
		LocalStore:    localStore,
		HubSpotClient: hubspotClient,
		AuthService:   authService,
		SyncService:   syncService,
		StartupTime:   startupStart,
	}, nil
}

// SyncNow runs a best-effort reconciliation of every linked opportunity.
// Individual failures are logged and skipped; a transient fetch failure never
// flips connection state.
func (a *App) SyncNow(ctx context.Context) (int, error) {
	if !a.AuthService.IsConnected(ctx) {
		return 0, auth.ErrNotConnected
	}

	opportunities, err := a.LocalStore.ListOpportunities(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list opportunities: %w", err)
	}

	synced := 0
	for _, opp := range opportunities {
		if opp.HubSpotID == "" {
			continue
		}
		if err := a.SyncService.SyncOpportunity(ctx, opp); err != nil {
			a.Logger.Warn().Err(err).Str("id", opp.ID).Msg("Manual sync failed for opportunity")
			continue
		}
		synced++
	}
	a.Logger.Info().Int("synced", synced).Msg("Manual sync completed")
	return synced, nil
}

// Close tears down storage.
func (a *App) Close() {
	if a.LocalStore != nil {
		if err := a.LocalStore.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("Failed to close local store")
		}
	}
	if a.TokenStore != nil {
		if err := a.TokenStore.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("Failed to close token store")
		}
	}
}
