package xplpro

import "time"

// flowController gates outbound traffic with a pause flag and a token-bucket
// byte-rate throttle.
//
// Tokens refill continuously from elapsed wall-clock time at the configured
// bytes-per-second rate. A frame is sent only when the bucket holds tokens for
// the whole frame: a deficit delays the next frame, it never splits the
// current one. Rate zero means unlimited.
type flowController struct {
	paused     bool
	rate       float64 // bytes per second, 0 = unlimited
	minBurst   float64 // lower bound of the token cap
	burst      float64 // token cap
	tokens     float64
	lastRefill time.Time
}

// newFlowController creates an unpaused, unlimited controller. minBurst keeps
// the bucket large enough to ever hold one maximum-size frame.
func newFlowController(minBurst int) *flowController {
	return &flowController{minBurst: float64(minBurst), burst: float64(minBurst)}
}

// canSend reports whether a frame of n bytes may be written now.
func (f *flowController) canSend(n int, now time.Time) bool {
	if f.paused {
		return false
	}
	if f.rate <= 0 {
		return true
	}
	f.refill(now)

	return f.tokens >= float64(n)
}

// onSent charges the bucket for a frame that was just written.
func (f *flowController) onSent(n int) {
	if f.rate <= 0 {
		return
	}
	f.tokens -= float64(n)
	if f.tokens < 0 {
		f.tokens = 0
	}
}

// pause closes the gate. Frames already written are unaffected; frames not
// yet written wait whole.
func (f *flowController) pause() {
	f.paused = true
}

// resume reopens the gate. The refill clock restarts so the pause interval
// grants no token backlog.
func (f *flowController) resume(now time.Time) {
	f.paused = false
	f.lastRefill = now
}

// setRate sets the throttle to bytesPerSecond (0 = unlimited) with a full
// bucket, so a rate change never stalls an already due frame.
func (f *flowController) setRate(bytesPerSecond uint, now time.Time) {
	f.rate = float64(bytesPerSecond)
	f.burst = max(f.minBurst, f.rate)
	f.tokens = f.burst
	f.lastRefill = now
}

func (f *flowController) refill(now time.Time) {
	elapsed := now.Sub(f.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	f.tokens += elapsed * f.rate
	if f.tokens > f.burst {
		f.tokens = f.burst
	}
	f.lastRefill = now
}
