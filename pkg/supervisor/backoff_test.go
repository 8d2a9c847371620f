package supervisor

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffGate_TryConsume(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	gate := NewBackoffGate(60 * time.Second)

	assert.Equal(t, time.Duration(0), gate.Remaining(t0))
	require.True(t, gate.TryConsume(t0), "never started is always eligible")

	assert.False(t, gate.TryConsume(t0.Add(59*time.Second)))
	last, ok := gate.LastStart()
	assert.True(t, ok)
	assert.Equal(t, t0, last, "a denied attempt has no side effect")
	assert.Equal(t, time.Second, gate.Remaining(t0.Add(59*time.Second)))

	assert.True(t, gate.TryConsume(t0.Add(60*time.Second)))
	assert.Equal(t, 60*time.Second, gate.Remaining(t0.Add(60*time.Second)))
}

func TestBackoffGate_Release(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	gate := NewBackoffGate(60 * time.Second)

	require.True(t, gate.TryConsume(t0))
	gate.Release()

	_, ok := gate.LastStart()
	assert.False(t, ok)
	assert.True(t, gate.TryConsume(t0.Add(5*time.Second)))
}

func TestBackoffGate_AcceptedStartsAreSpaced(t *testing.T) {
	delay := 60 * time.Second
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 50; run++ {
		gate := NewBackoffGate(delay)
		now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

		var accepted []time.Time
		for i := 0; i < 200; i++ {
			now = now.Add(time.Duration(rng.Intn(45)) * time.Second)
			if gate.TryConsume(now) {
				accepted = append(accepted, now)
			}
		}

		for i := 1; i < len(accepted); i++ {
			assert.GreaterOrEqual(t, accepted[i].Sub(accepted[i-1]), delay)
		}
	}
}

func TestServerUnit_Projection(t *testing.T) {
	unit := newServerUnit(serverConfig("alpha", 2302, 0, 240), newMockLogger())
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, unit.IsAlive())
	_, ok := unit.Age(now)
	assert.False(t, ok)
	assert.Zero(t, unit.PID())

	handle := &fakeHandle{pid: 42, alive: true}
	unit.handle = handle
	unit.startedAt = now

	assert.True(t, unit.IsAlive())
	age, ok := unit.Age(now.Add(90 * time.Second))
	assert.True(t, ok)
	assert.Equal(t, 90*time.Second, age)

	handle.Die()
	assert.False(t, unit.IsAlive())
	_, ok = unit.StartedAt()
	assert.True(t, ok, "startedAt survives the process dying")
	assert.Equal(t, 42, unit.PID())
}
