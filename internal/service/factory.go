// File: internal/service/factory.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/challan-cli/internal/batch"
	"github.com/xkilldash9x/challan-cli/internal/browser"
	"github.com/xkilldash9x/challan-cli/internal/browser/cdp"
	"github.com/xkilldash9x/challan-cli/internal/config"
	"github.com/xkilldash9x/challan-cli/internal/downloads"
	"github.com/xkilldash9x/challan-cli/internal/interaction"
	"github.com/xkilldash9x/challan-cli/internal/portal"
	"github.com/xkilldash9x/challan-cli/internal/session"
)

// ClientOpener starts the browser a run drives.
type ClientOpener func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (browser.Client, error)

// ComponentFactory builds the components for a run. The abstraction lets the
// run command be tested without Chrome.
type ComponentFactory interface {
	Create(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error)
}

// concreteFactory is the production implementation of the ComponentFactory.
type concreteFactory struct {
	open ClientOpener
}

// NewComponentFactory creates a factory that launches Chrome through chromedp.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{open: openChrome}
}

// NewComponentFactoryWith creates a factory using open to obtain the browser.
func NewComponentFactoryWith(open ClientOpener) ComponentFactory {
	return &concreteFactory{open: open}
}

func openChrome(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (browser.Client, error) {
	client, err := cdp.NewClient(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Create wires the store, browser, portal flows and batch runner. If any step
// fails after the browser started, the browser is closed before returning.
func (f *concreteFactory) Create(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	if cfg == nil || logger == nil {
		return nil, fmt.Errorf("cannot create components with nil dependencies")
	}
	components := &Components{logger: logger}

	var initializationErr error
	defer func() {
		if initializationErr != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(initializationErr))
			components.Shutdown()
		}
	}()

	// 1. Record store. Checked before Chrome starts so a typo costs nothing.
	store, err := InitializeStore(cfg.Records.Path, logger)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	components.Store = store

	// 2. Browser. This is the one unrecoverable acquisition.
	client, err := f.open(ctx, cfg.Browser, logger)
	if err != nil {
		initializationErr = fmt.Errorf("failed to start browser: %w", err)
		return nil, initializationErr
	}
	components.Client = client
	logger.Debug("Browser client initialized.")

	// 3. Interaction layer.
	in := interaction.New(client, logger, interaction.Options{
		DefaultTimeout: cfg.Timeouts.Element,
		PollInterval:   cfg.Timeouts.Poll,
		Pacer:          InitializePacer(cfg.Pacing, logger),
		Dumper:         interaction.NewDumper(client, cfg.Diagnostics.Dir, cfg.Diagnostics.Enabled, logger),
		Mover:          InitializeMover(cfg.Browser.Humanoid, client, logger),
	})

	// 4. Portal flows.
	components.Sessions = session.NewManager(cfg.Session.CookieFile, logger)
	finder := downloads.NewPDFFinder(cfg.Browser.DownloadDir, cfg.Timeouts.Download, cfg.Timeouts.Poll)
	components.Portal = portal.New(in, components.Sessions, finder, batch.NewClockCRN(nil), portal.Options{
		URL:      cfg.Portal.URL,
		Timeouts: cfg.Timeouts,
	}, logger)

	// 5. Batch runner.
	runner, err := batch.New(store, components.Portal, logger)
	if err != nil {
		initializationErr = fmt.Errorf("failed to create batch runner: %w", err)
		return nil, initializationErr
	}
	components.Runner = runner

	logger.Info("Components initialized.",
		zap.String("records", cfg.Records.Path),
		zap.String("download_dir", cfg.Browser.DownloadDir))
	return components, nil
}
