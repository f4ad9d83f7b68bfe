package intelligence

import (
	"math"
	"time"
)

// DecayModel computes memory retention using an Ebbinghaus-style forgetting
// curve: retention falls exponentially with time since last access, and
// reading a memory reinforces it.
//
// Search re-ranking consumes the retention value so that older, rarely
// accessed memories rank lower even when textually similar to the query.
type DecayModel struct {
	// decayRate is the rate at which memories decay over time.
	// Higher values mean faster decay. Typical range: 0.05-0.2.
	decayRate float64

	// reinforcementFactor determines how much memories strengthen on
	// access. Typical range: 0.2-0.5.
	reinforcementFactor float64
}

// NewDecayModel creates a decay model. Zero values select the defaults
// (decayRate 0.1, reinforcementFactor 0.3).
func NewDecayModel(decayRate, reinforcementFactor float64) *DecayModel {
	if decayRate == 0 {
		decayRate = 0.1
	}
	if reinforcementFactor == 0 {
		reinforcementFactor = 0.3
	}
	return &DecayModel{
		decayRate:           decayRate,
		reinforcementFactor: reinforcementFactor,
	}
}

// Retention calculates the current retention strength of a memory.
//
// The formula is R = e^(-decay_rate * hours_elapsed / 24), where
// hours_elapsed is measured from the last access (or creation if the memory
// was never accessed). The result is clamped to [0, 1]:
// 1.0 = perfect retention, 0.0 = completely forgotten.
func (m *DecayModel) Retention(createdAt time.Time, lastAccessedAt *time.Time) float64 {
	now := time.Now()

	var elapsed time.Duration
	if lastAccessedAt != nil {
		elapsed = now.Sub(*lastAccessedAt)
	} else {
		elapsed = now.Sub(createdAt)
	}

	retention := math.Exp(-m.decayRate * elapsed.Hours() / 24.0)

	if retention > 1.0 {
		return 1.0
	}
	if retention < 0.0 {
		return 0.0
	}
	return retention
}

// Reinforce strengthens a memory when it is accessed.
//
// new_strength = min(1.0, current + factor * (1 - current)), so weak
// memories gain more than strong ones and strength is capped at 1.0.
func (m *DecayModel) Reinforce(currentStrength float64) float64 {
	newStrength := currentStrength + m.reinforcementFactor*(1.0-currentStrength)
	if newStrength > 1.0 {
		return 1.0
	}
	return newStrength
}

// AccessFrequencyScore maps an access count onto [0, 1] on a log scale,
// saturating around 100 accesses.
func AccessFrequencyScore(accessCount int) float64 {
	if accessCount <= 0 {
		return 0
	}
	score := math.Log(float64(accessCount)+1) / math.Log(100)
	if score > 1 {
		return 1
	}
	return score
}
