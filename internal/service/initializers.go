// File: internal/service/initializers.go
package service

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/xkilldash9x/challan-cli/internal/browser"
	"github.com/xkilldash9x/challan-cli/internal/config"
	"github.com/xkilldash9x/challan-cli/internal/humanoid"
	"github.com/xkilldash9x/challan-cli/internal/interaction"
	"github.com/xkilldash9x/challan-cli/internal/records"
)

// InitializeStore opens the record store at path. The file must already
// exist; `challan-cli template` creates an empty one.
func InitializeStore(path string, logger *zap.Logger) (records.Store, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("record file %s not found (hint: create one with `challan-cli template %s`)", path, path)
	case err != nil:
		return nil, fmt.Errorf("failed to stat record file: %w", err)
	case info.IsDir():
		return nil, fmt.Errorf("record file %s is a directory", path)
	}

	store, err := records.Open(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("Record store opened.", zap.String("path", path))
	return store, nil
}

// InitializeMover builds the pointer simulator, or returns nil when the
// humanoid is switched off and Approach should only scroll.
func InitializeMover(cfg config.HumanoidConfig, client browser.Client, logger *zap.Logger) interaction.Mover {
	if !cfg.Enabled {
		logger.Debug("Humanoid pointer movement disabled.")
		return nil
	}
	return humanoid.New(humanoid.FromConfig(cfg), logger.Named("humanoid"), interaction.ClientExecutor{Client: client})
}

// InitializePacer builds the delay policy between UI actions.
func InitializePacer(cfg config.PacingConfig, logger *zap.Logger) interaction.Pacer {
	if !cfg.Enabled {
		logger.Warn("Pacing disabled; the portal may reject a run this fast.")
	}
	return interaction.NewPacer(cfg)
}
