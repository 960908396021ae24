// internal/humanoid/config.go
package humanoid

import (
	"math"
	"math/rand"

	"github.com/xkilldash9x/challan-cli/internal/config"
)

// Config holds the parameters of the motion model. The *Mean/*StdDev pairs
// describe a population; FinalizeSessionPersona samples one operator from it.
type Config struct {
	Rng *rand.Rand

	FittsAMean, FittsAStdDev float64
	FittsBMean, FittsBStdDev float64

	GaussianStrengthMean, GaussianStrengthStdDev float64
	PerlinAmplitudeMean, PerlinAmplitudeStdDev   float64

	// Curvature is the maximum sideways bow of a path as a fraction of its length.
	Curvature float64

	FatigueIncreaseRate float64
	FatigueRecoveryRate float64

	// Instance parameters, filled by FinalizeSessionPersona.
	FittsA, FittsB   float64
	GaussianStrength float64
	PerlinAmplitude  float64
}

// DefaultConfig returns a configuration representing an average user.
func DefaultConfig() Config {
	return Config{
		FittsAMean: 100.0, FittsAStdDev: 15.0,
		FittsBMean: 120.0, FittsBStdDev: 20.0,
		GaussianStrengthMean: 0.5, GaussianStrengthStdDev: 0.1,
		PerlinAmplitudeMean: 2.5, PerlinAmplitudeStdDev: 0.5,
		Curvature:           0.15,
		FatigueIncreaseRate: 0.005,
		FatigueRecoveryRate: 0.01,
	}
}

// FromConfig overlays the application's humanoid settings onto the defaults.
func FromConfig(c config.HumanoidConfig) Config {
	cfg := DefaultConfig()
	if c.FittsA > 0 {
		cfg.FittsAMean = c.FittsA
	}
	if c.FittsB > 0 {
		cfg.FittsBMean = c.FittsB
	}
	if c.PerlinAmplitude > 0 {
		cfg.PerlinAmplitudeMean = c.PerlinAmplitude
	}
	if c.GaussianNoise > 0 {
		cfg.GaussianStrengthMean = c.GaussianNoise
	}
	return cfg
}

// FinalizeSessionPersona generates the fixed instance parameters for a run.
func (c *Config) FinalizeSessionPersona(rng *rand.Rand) {
	c.Rng = rng
	c.FittsA = math.Max(20.0, sampleGaussian(rng, c.FittsAMean, c.FittsAStdDev))
	c.FittsB = math.Max(20.0, sampleGaussian(rng, c.FittsBMean, c.FittsBStdDev))
	c.GaussianStrength = math.Max(0.0, sampleGaussian(rng, c.GaussianStrengthMean, c.GaussianStrengthStdDev))
	c.PerlinAmplitude = math.Max(0.0, sampleGaussian(rng, c.PerlinAmplitudeMean, c.PerlinAmplitudeStdDev))
}

func sampleGaussian(rng *rand.Rand, mean, stdDev float64) float64 {
	if rng == nil {
		return mean
	}
	return mean + rng.NormFloat64()*stdDev
}
