// File: internal/service/components.go
package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/challan-cli/internal/batch"
	"github.com/xkilldash9x/challan-cli/internal/browser"
	"github.com/xkilldash9x/challan-cli/internal/portal"
	"github.com/xkilldash9x/challan-cli/internal/records"
	"github.com/xkilldash9x/challan-cli/internal/session"
)

// shutdownTimeout bounds browser teardown. It runs on a fresh context so a
// cancelled run still closes Chrome.
const shutdownTimeout = 30 * time.Second

// Components holds everything one batch run needs and owns the browser.
type Components struct {
	Client   browser.Client
	Store    records.Store
	Sessions *session.Manager
	Portal   *portal.Portal
	Runner   *batch.Runner

	logger   *zap.Logger
	shutdown sync.Once
}

// Shutdown releases the browser. It is safe to call more than once and on
// partially built components; only the first call does anything.
func (c *Components) Shutdown() {
	c.shutdown.Do(func() {
		logger := c.logger
		if logger == nil {
			logger = zap.NewNop()
		}
		logger.Debug("Beginning components shutdown sequence.")

		if c.Client != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := c.Client.Close(ctx); err != nil {
				logger.Warn("Error during browser shutdown.", zap.Error(err))
			} else {
				logger.Debug("Browser closed.")
			}
		}
		logger.Info("All components shut down.")
	})
}
