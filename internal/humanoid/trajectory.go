// internal/humanoid/trajectory.go
package humanoid

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
)

const (
	// fittsTargetWidth is the assumed target width W in Fitts's law.
	fittsTargetWidth = 30.0
	stepsPerSecond   = 60.0
	maxSteps         = 120
)

// computeEaseInOutCubic gives a slow start, fast middle and slow end.
func computeEaseInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// fittsDuration returns the movement time for distance using the fatigued
// instance parameters, randomized by +/-15%.
func (h *Humanoid) fittsDuration(distance float64) time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := math.Log2(1.0 + distance/fittsTargetWidth)
	mt := h.dynamicConfig.FittsA + h.dynamicConfig.FittsB*id
	mt += mt * (h.rng.Float64()*0.3 - 0.15)
	return time.Duration(mt) * time.Millisecond
}

// idealPath samples a cubic Bezier from start to end whose control points are
// pushed sideways by a random bow.
func (h *Humanoid) idealPath(start, end Vector2D, numSteps int) []Vector2D {
	mainVec := end.Sub(start)
	dist := mainVec.Mag()
	if dist < 1.0 || numSteps <= 1 {
		return []Vector2D{end}
	}

	h.mu.Lock()
	bow1 := (h.rng.Float64()*2 - 1) * h.baseConfig.Curvature * dist
	bow2 := (h.rng.Float64()*2 - 1) * h.baseConfig.Curvature * dist
	h.mu.Unlock()

	dir := mainVec.Normalize()
	side := dir.Perp()
	p0, p3 := start, end
	p1 := start.Add(dir.Mul(dist / 3.0)).Add(side.Mul(bow1))
	p2 := start.Add(dir.Mul(dist * 2.0 / 3.0)).Add(side.Mul(bow2))

	path := make([]Vector2D, numSteps)
	for i := 0; i < numSteps; i++ {
		t := float64(i) / float64(numSteps-1)
		omt := 1.0 - t
		path[i] = p0.Mul(omt * omt * omt).
			Add(p1.Mul(3 * omt * omt * t)).
			Add(p2.Mul(3 * omt * t * t)).
			Add(p3.Mul(t * t * t))
	}
	return path
}

// simulateTrajectory walks the eased path, perturbing every intermediate point
// with Perlin drift and Gaussian tremor. The final point is dispatched exactly.
func (h *Humanoid) simulateTrajectory(ctx context.Context, start, end Vector2D) error {
	duration := h.fittsDuration(start.Dist(end))
	numSteps := int(duration.Seconds() * stepsPerSecond)
	if numSteps < 2 {
		numSteps = 2
	}
	if numSteps > maxSteps {
		numSteps = maxSteps
	}
	stepPause := duration / time.Duration(numSteps)

	path := h.idealPath(start, end, numSteps)
	last := len(path) - 1

	for i := 0; i <= last; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		t := 1.0
		if last > 0 {
			t = float64(i) / float64(last)
		}
		point := path[int(computeEaseInOutCubic(t)*float64(last))]
		if i < last {
			point = h.perturb(point, t)
		}

		if err := h.executor.MouseMove(ctx, point.X, point.Y); err != nil {
			if ctx.Err() == nil {
				h.logger.Debug("Humanoid: pointer move failed", zap.Error(err))
			}
			return err
		}
		h.mu.Lock()
		h.currentPos = point
		h.mu.Unlock()

		if i < last {
			if err := h.executor.Sleep(ctx, stepPause); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Humanoid) perturb(p Vector2D, t float64) Vector2D {
	h.mu.Lock()
	defer h.mu.Unlock()

	const perlinFrequency = 0.8
	amp := h.dynamicConfig.PerlinAmplitude
	drift := Vector2D{
		X: h.noiseX.Noise1D(t*perlinFrequency) * amp,
		Y: h.noiseY.Noise1D(t*perlinFrequency) * amp,
	}
	strength := h.dynamicConfig.GaussianStrength * (0.5 + h.rng.Float64())
	tremor := Vector2D{X: h.rng.NormFloat64() * strength, Y: h.rng.NormFloat64() * strength}
	return p.Add(drift).Add(tremor)
}
