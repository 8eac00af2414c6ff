package xplpro

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/GioCC/XPLPro-Official/logger"
)

// nopLogger discards all output; tests assert on behavior, not log text.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any)      {}
func (nopLogger) Info(string, ...any)       {}
func (nopLogger) Warn(string, ...any)       {}
func (nopLogger) Error(string, ...any)      {}
func (nopLogger) Fatal(string, ...any)      {}
func (n nopLogger) With(...any) logger.Logger { return n }
func (nopLogger) Level() logger.Level       { return logger.ErrorLevel }
func (nopLogger) SetLevel(logger.Level)     {}

// fakeClock is a deterministic wall clock. When step is non-zero, every now()
// call advances the clock, letting poll loops progress toward their deadline.
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

// mockTransport is a scriptable in-memory transport. Injected bytes become
// readable; every Write is recorded whole, which is what lets tests assert
// that frames are never split. The optional onWrite hook plays the host side:
// it can inject a response the moment a request frame is written.
type mockTransport struct {
	rx      bytes.Buffer
	writes  []string
	onWrite func(frame string)
	readErr error
}

func (m *mockTransport) Read(p []byte) (int, error) {
	if m.readErr != nil {
		return 0, m.readErr
	}
	if m.rx.Len() == 0 {
		return 0, nil
	}

	return m.rx.Read(p)
}

func (m *mockTransport) Write(p []byte) (int, error) {
	frame := string(p)
	m.writes = append(m.writes, frame)
	if m.onWrite != nil {
		m.onWrite(frame)
	}

	return len(p), nil
}

func (m *mockTransport) inject(s string) {
	m.rx.WriteString(s)
}

func (m *mockTransport) lastWrite() string {
	if len(m.writes) == 0 {
		return ""
	}

	return m.writes[len(m.writes)-1]
}

// autoResolve wires the transport to answer registration requests like the
// host plugin: each register-by-name frame gets a handle response carrying
// the mapped handle, or the not-found sentinel for unmapped names.
func autoResolve(tr *mockTransport, handles map[string]int) {
	tr.onWrite = func(frame string) {
		if len(frame) < 4 || frame[0] != frameStart {
			return
		}

		var rsp byte
		switch frame[1] {
		case reqRegisterDataref:
			rsp = rspDataref
		case reqRegisterCommand:
			rsp = rspCommand
		default:
			return
		}

		name := frame[3 : len(frame)-1]
		handle, ok := handles[name]
		if !ok {
			handle = HandleInvalid
		}
		tr.inject(fmt.Sprintf("[%c,%d,%s]", rsp, handle, name))
	}
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *mockTransport, *fakeClock) {
	t.Helper()

	tr := &mockTransport{}
	clk := newFakeClock()

	opts = append(opts, WithLogger(nopLogger{}))
	e, err := New(tr, opts...)
	require.NoError(t, err)
	e.now = clk.now

	return e, tr, clk
}

// startSession drives the engine through the full handshake: name inquiry,
// identity reply, ready signal, registration callback.
func startSession(t *testing.T, e *Engine, tr *mockTransport, h DeviceHandler) {
	t.Helper()

	require.NoError(t, e.Begin("TestDevice", h))

	tr.inject("[N]")
	e.Step()
	tr.inject("[Q]")
	e.Step()
}
