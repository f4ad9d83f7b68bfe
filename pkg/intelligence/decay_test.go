package intelligence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetentionFreshMemory(t *testing.T) {
	model := NewDecayModel(0, 0)

	created := time.Now()
	retention := model.Retention(created, nil)

	assert.InDelta(t, 1.0, retention, 0.01, "A just-created memory should have near-perfect retention")
}

func TestRetentionDecaysOverTime(t *testing.T) {
	model := NewDecayModel(0.1, 0.3)

	dayOld := time.Now().Add(-24 * time.Hour)
	weekOld := time.Now().Add(-7 * 24 * time.Hour)

	dayRetention := model.Retention(dayOld, nil)
	weekRetention := model.Retention(weekOld, nil)

	assert.Less(t, dayRetention, 1.0)
	assert.Less(t, weekRetention, dayRetention, "Older memories should retain less")
	assert.GreaterOrEqual(t, weekRetention, 0.0)
}

func TestRetentionUsesLastAccess(t *testing.T) {
	model := NewDecayModel(0.1, 0.3)

	created := time.Now().Add(-30 * 24 * time.Hour)
	recentAccess := time.Now().Add(-1 * time.Hour)

	stale := model.Retention(created, nil)
	refreshed := model.Retention(created, &recentAccess)

	assert.Greater(t, refreshed, stale, "A recent access should reset the decay clock")
}

func TestReinforce(t *testing.T) {
	model := NewDecayModel(0.1, 0.3)

	weak := model.Reinforce(0.2)
	strong := model.Reinforce(0.9)

	assert.Greater(t, weak, 0.2)
	assert.Greater(t, strong, 0.9)
	assert.LessOrEqual(t, strong, 1.0)

	// Weak memories gain more absolute strength than strong ones.
	assert.Greater(t, weak-0.2, strong-0.9)

	assert.Equal(t, 1.0, model.Reinforce(1.0), "Reinforcement is capped at 1.0")
}

func TestAccessFrequencyScore(t *testing.T) {
	assert.Equal(t, 0.0, AccessFrequencyScore(0))
	assert.Greater(t, AccessFrequencyScore(1), 0.0)
	assert.Greater(t, AccessFrequencyScore(10), AccessFrequencyScore(1))
	assert.Equal(t, 1.0, AccessFrequencyScore(1000), "Score saturates at 1.0")
}
