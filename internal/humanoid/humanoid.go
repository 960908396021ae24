// internal/humanoid/humanoid.go
package humanoid

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/aquilax/go-perlin"
	"go.uber.org/zap"
)

// Executor is the low-level surface the simulator drives.
type Executor interface {
	// Sleep pauses execution, respecting context cancellation.
	Sleep(ctx context.Context, d time.Duration) error
	// MouseMove dispatches a single pointer move to viewport coordinates.
	MouseMove(ctx context.Context, x, y float64) error
}

// Humanoid tracks the virtual pointer and produces human-looking motion.
type Humanoid struct {
	// mu protects every field below.
	mu            sync.Mutex
	baseConfig    Config
	dynamicConfig Config
	logger        *zap.Logger
	executor      Executor
	currentPos    Vector2D
	fatigueLevel  float64
	lastMove      time.Time
	now           func() time.Time
	rng           *rand.Rand
	noiseX        *perlin.Perlin
	noiseY        *perlin.Perlin
}

// New creates a Humanoid and samples its persona.
func New(config Config, logger *zap.Logger, executor Executor) *Humanoid {
	seed := time.Now().UnixNano()
	rng := config.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(seed))
	}
	config.FinalizeSessionPersona(rng)

	// Standard Perlin noise parameters; the Y generator is offset so the axes decorrelate.
	alpha, beta, n := 2.0, 2.0, int32(3)
	return &Humanoid{
		baseConfig:    config,
		dynamicConfig: config,
		logger:        logger,
		executor:      executor,
		now:           time.Now,
		rng:           rng,
		noiseX:        perlin.NewPerlin(alpha, beta, n, seed),
		noiseY:        perlin.NewPerlin(alpha, beta, n, seed+1),
	}
}

// NewTestHumanoid creates a Humanoid with deterministic dependencies for testing.
func NewTestHumanoid(executor Executor, seed int64) *Humanoid {
	cfg := DefaultConfig()
	cfg.Rng = rand.New(rand.NewSource(seed))
	h := New(cfg, zap.NewNop(), executor)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.noiseX = perlin.NewPerlin(2, 2, 3, seed)
	h.noiseY = perlin.NewPerlin(2, 2, 3, seed+1)
	h.dynamicConfig.FittsA = 100.0
	h.dynamicConfig.FittsB = 150.0
	h.dynamicConfig.PerlinAmplitude = 2.0
	h.dynamicConfig.GaussianStrength = 0.5
	h.baseConfig = h.dynamicConfig
	return h
}

// Position returns the last pointer position dispatched.
func (h *Humanoid) Position() Vector2D {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentPos
}

// SetPosition teleports the virtual pointer without dispatching anything.
func (h *Humanoid) SetPosition(p Vector2D) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentPos = p
}

// Fatigue returns the current fatigue level in [0, 1].
func (h *Humanoid) Fatigue() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fatigueLevel
}

// MoveTo moves the pointer to target along a curved, noisy path. Time spent
// idle since the previous move is recovered first.
func (h *Humanoid) MoveTo(ctx context.Context, target Vector2D) error {
	h.mu.Lock()
	start := h.currentPos
	now := h.now()
	if !h.lastMove.IsZero() {
		h.rest(now.Sub(h.lastMove))
	}
	h.lastMove = now
	h.mu.Unlock()

	h.updateFatigue(start.Dist(target) / 1000.0)
	return h.simulateTrajectory(ctx, start, target)
}

// MoveInto moves the pointer to a natural landing point inside a box given by
// its top-left corner and size. Boxes with no area are targeted at their origin.
func (h *Humanoid) MoveInto(ctx context.Context, x, y, width, height float64) error {
	return h.MoveTo(ctx, h.landingPoint(x, y, width, height))
}

// landingPoint picks a point near the centre of the box, biased by a normal
// distribution and clamped one pixel inside the edges.
func (h *Humanoid) landingPoint(x, y, width, height float64) Vector2D {
	if width <= 2 || height <= 2 {
		return Vector2D{X: x + width/2, Y: y + height/2}
	}
	h.mu.Lock()
	offX := h.rng.NormFloat64() * width * 0.9 / 6.0
	offY := h.rng.NormFloat64() * height * 0.9 / 6.0
	h.mu.Unlock()

	cx, cy := x+width/2, y+height/2
	return Vector2D{
		X: math.Max(x+1, math.Min(x+width-1, cx+offX)),
		Y: math.Max(y+1, math.Min(y+height-1, cy+offY)),
	}
}

// applyFatigueEffects adjusts the dynamic configuration; callers hold h.mu.
func (h *Humanoid) applyFatigueEffects() {
	factor := 1.0 + h.fatigueLevel
	h.dynamicConfig.GaussianStrength = h.baseConfig.GaussianStrength * factor
	h.dynamicConfig.PerlinAmplitude = h.baseConfig.PerlinAmplitude * factor
	h.dynamicConfig.FittsA = h.baseConfig.FittsA * factor
}

func (h *Humanoid) updateFatigue(intensity float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fatigueLevel = math.Min(1.0, h.fatigueLevel+h.baseConfig.FatigueIncreaseRate*intensity)
	h.applyFatigueEffects()
}

// rest lowers fatigue in proportion to an idle period; callers hold h.mu.
func (h *Humanoid) rest(idle time.Duration) {
	if idle <= 0 {
		return
	}
	h.fatigueLevel = math.Max(0.0, h.fatigueLevel-h.baseConfig.FatigueRecoveryRate*idle.Seconds())
	h.applyFatigueEffects()
}
