package interaction

import (
	"context"
	"time"

	"github.com/xkilldash9x/challan-cli/internal/browser"
	"github.com/xkilldash9x/challan-cli/internal/humanoid"
)

// ClientExecutor drives humanoid movement through a browser.Client.
type ClientExecutor struct {
	Client browser.Client
}

var _ humanoid.Executor = ClientExecutor{}

// Sleep implements humanoid.Executor.
func (e ClientExecutor) Sleep(ctx context.Context, d time.Duration) error {
	return sleep(ctx, d)
}

// MouseMove implements humanoid.Executor.
func (e ClientExecutor) MouseMove(ctx context.Context, x, y float64) error {
	return e.Client.MouseMove(ctx, x, y)
}
