package xplpro

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFlowController_UnlimitedByDefault(t *testing.T) {
	f := newFlowController(200)
	now := time.Unix(0, 0)

	assert.True(t, f.canSend(1, now))
	assert.True(t, f.canSend(10_000, now), "no rate set means no limit")
}

func TestFlowController_PauseResume(t *testing.T) {
	f := newFlowController(200)
	now := time.Unix(0, 0)

	f.pause()
	assert.False(t, f.canSend(1, now), "paused gate holds everything")

	f.resume(now)
	assert.True(t, f.canSend(1, now))
}

func TestFlowController_RateLimit(t *testing.T) {
	f := newFlowController(200)
	now := time.Unix(0, 0)

	f.setRate(100, now)

	// The bucket starts full at the burst cap (here the minBurst floor, 200).
	assert.True(t, f.canSend(200, now))
	f.onSent(200)

	// Drained; a whole frame must wait for a full refill, never go out split.
	assert.False(t, f.canSend(50, now))

	// 100 B/s: after 250 ms there are ~25 tokens.
	quarter := now.Add(250 * time.Millisecond)
	assert.False(t, f.canSend(50, quarter))
	assert.True(t, f.canSend(20, quarter))

	f.onSent(20)
	assert.False(t, f.canSend(20, quarter), "tokens are charged per byte sent")
}

func TestFlowController_RefillCapsAtBurst(t *testing.T) {
	f := newFlowController(200)
	now := time.Unix(0, 0)

	f.setRate(100, now)
	f.onSent(200)

	// A long idle period must not accumulate an unbounded backlog.
	later := now.Add(time.Hour)
	assert.True(t, f.canSend(200, later))
	assert.False(t, f.canSend(201, later))
}

func TestFlowController_ResumeGrantsNoBacklog(t *testing.T) {
	f := newFlowController(10)
	now := time.Unix(0, 0)

	f.setRate(100, now)
	f.onSent(100)
	f.pause()

	// Tokens must not pile up across the pause interval.
	later := now.Add(time.Hour)
	f.resume(later)
	assert.False(t, f.canSend(100, later))
	assert.True(t, f.canSend(100, later.Add(time.Second)))
}

func TestFlowController_UnlimitedSkipsAccounting(t *testing.T) {
	f := newFlowController(10)
	now := time.Unix(0, 0)

	f.onSent(1_000_000)
	assert.True(t, f.canSend(1_000_000, now))
}
