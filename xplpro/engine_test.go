package xplpro

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertWholeFrames(t *testing.T, writes []string) {
	t.Helper()
	for i, w := range writes {
		require.NotEmpty(t, w, "write %d", i)
		assert.Equal(t, byte(frameStart), w[0], "write %d must start a frame: %q", i, w)
		assert.Equal(t, byte(frameEnd), w[len(w)-1], "write %d must end a frame: %q", i, w)
	}
}

func TestEngine_New(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrTransportNil)

	e, _, _ := newTestEngine(t)
	assert.ErrorIs(t, e.Begin("", nil), ErrDeviceNameEmpty)
}

func TestEngine_StepBeforeBegin(t *testing.T) {
	e, _, _ := newTestEngine(t)

	assert.False(t, e.Step())
	assert.ErrorIs(t, e.SendDebugMessage("x"), ErrNotStarted)
}

// TestEngine_FullScenario walks the whole session: name inquiry, identity
// reply, ready signal, registration of a dataref resolving to handle 42, and
// an integer write whose frame decodes back to (handle=42, value=1).
func TestEngine_FullScenario(t *testing.T) {
	e, tr, _ := newTestEngine(t)
	autoResolve(tr, map[string]int{"sim/cockpit/switch1": 42})

	handle := HandleInvalid
	var values []Value
	require.NoError(t, e.Begin("MyDevice", HandlerFuncs{
		Ready: func() { handle = e.RegisterDataRef("sim/cockpit/switch1") },
		Value: func(v Value) { values = append(values, v) },
	}))

	tr.inject("[N]")
	assert.False(t, e.Step(), "identified but not yet connected")
	require.GreaterOrEqual(t, len(tr.writes), 2)
	assert.Equal(t, "[n,MyDevice]", tr.writes[0])
	assert.True(t, strings.HasPrefix(tr.writes[1], "[v,"), "version reply must follow the name reply")
	assert.Equal(t, AwaitingReadyState, e.State())

	tr.inject("[Q]")
	assert.True(t, e.Step())
	assert.Equal(t, 42, handle)
	assert.Contains(t, tr.writes, "[b,sim/cockpit/switch1]")
	assert.True(t, e.ConnectionStatus())

	require.NoError(t, e.WriteInt(handle, 1))
	require.Equal(t, "[1,42,1]", tr.lastWrite())

	// The emitted frame decodes back to the written value.
	cmd, payload, ok := splitPayload([]byte(tr.lastWrite()[1 : len(tr.lastWrite())-1]))
	require.True(t, ok)
	assert.Equal(t, byte(cmdUpdateInt), cmd)
	v, err := decodeScalarUpdate(payload, KindInt)
	require.NoError(t, err)
	assert.Equal(t, Value{Handle: 42, Kind: KindInt, Int: 1}, v)

	// Host sends an update; it reaches the application callback.
	tr.inject("[1,42,7]")
	e.Step()
	require.Len(t, values, 1)
	assert.Equal(t, Value{Handle: 42, Kind: KindInt, Int: 7}, values[0])

	assertWholeFrames(t, tr.writes)
}

func TestEngine_RegisterUnknownNameIsNotFatal(t *testing.T) {
	e, tr, _ := newTestEngine(t)
	autoResolve(tr, nil) // host knows no names

	handle := 12345
	startSession(t, e, tr, HandlerFuncs{
		Ready: func() { handle = e.RegisterDataRef("bogus/dataref") },
	})

	assert.Equal(t, HandleInvalid, handle)
	assert.True(t, e.ConnectionStatus(), "a not-found name must not fail the session")
}

func TestEngine_ReadyTimeoutDisconnectsOnce(t *testing.T) {
	e, tr, clk := newTestEngine(t)

	disconnects := 0
	require.NoError(t, e.Begin("TestDevice", HandlerFuncs{
		Disconnect: func() { disconnects++ },
	}))

	tr.inject("[N]")
	e.Step()
	require.Equal(t, AwaitingReadyState, e.State())

	clk.advance(DefaultResponseTimeout + time.Second)
	assert.False(t, e.Step())
	assert.Equal(t, IdleState, e.State())
	assert.Equal(t, 1, disconnects)

	// Further steps must not fire the callback again.
	e.Step()
	e.Step()
	assert.Equal(t, 1, disconnects)
	assert.Equal(t, uint64(1), e.Metrics().DisconnectCount.Load())
}

func TestEngine_RegistrationTimeoutDisconnects(t *testing.T) {
	e, tr, clk := newTestEngine(t)
	// No autoResolve: the host never answers registration requests.

	disconnects := 0
	handle := 12345
	startSession(t, e, tr, HandlerFuncs{
		Ready: func() {
			clk.step = 10 * time.Second // let the poll loop reach its deadline
			handle = e.RegisterDataRef("sim/never/answered")
			clk.step = 0
		},
		Disconnect: func() { disconnects++ },
	})

	assert.Equal(t, HandleInvalid, handle)
	assert.Equal(t, 1, disconnects)
	assert.False(t, e.ConnectionStatus())
	assert.Contains(t, tr.writes, "[b,sim/never/answered]")
}

func TestEngine_HostExitClearsHandlesAndRestarts(t *testing.T) {
	e, tr, _ := newTestEngine(t)
	autoResolve(tr, map[string]int{"sim/cockpit/switch1": 42})

	disconnects := 0
	readies := 0
	handle := HandleInvalid
	startSession(t, e, tr, HandlerFuncs{
		Ready: func() {
			readies++
			handle = e.RegisterDataRef("sim/cockpit/switch1")
		},
		Disconnect: func() { disconnects++ },
	})
	require.True(t, e.ConnectionStatus())
	require.Equal(t, 42, handle)

	tr.inject("[X]")
	assert.False(t, e.Step())
	assert.Equal(t, 1, disconnects)
	assert.Equal(t, IdleState, e.State())

	// Volatile bindings are gone.
	assert.ErrorIs(t, e.WriteInt(42, 1), ErrInvalidHandle)

	// A new name inquiry restarts the handshake from scratch.
	tr.inject("[N]")
	e.Step()
	assert.Equal(t, AwaitingReadyState, e.State())

	tr.inject("[Q]")
	assert.True(t, e.Step())
	assert.Equal(t, 2, readies)
	assert.Equal(t, 42, handle)
	assert.NoError(t, e.WriteInt(42, 1))
}

func TestEngine_UnknownCommandDroppedSilently(t *testing.T) {
	e, tr, _ := newTestEngine(t)
	autoResolve(tr, map[string]int{"sim/cockpit/switch1": 42})

	var values []Value
	startSession(t, e, tr, HandlerFuncs{
		Ready: func() { e.RegisterDataRef("sim/cockpit/switch1") },
		Value: func(v Value) { values = append(values, v) },
	})

	drops := e.Metrics().FrameDropCount.Load()
	tr.inject("[?,1,2]")
	assert.True(t, e.Step(), "unknown commands must not affect the session")
	assert.Empty(t, values)
	assert.Equal(t, drops+1, e.Metrics().FrameDropCount.Load())
}

func TestEngine_MalformedUpdateDropped(t *testing.T) {
	e, tr, _ := newTestEngine(t)
	autoResolve(tr, map[string]int{"sim/cockpit/switch1": 42})

	var values []Value
	startSession(t, e, tr, HandlerFuncs{
		Ready: func() { e.RegisterDataRef("sim/cockpit/switch1") },
		Value: func(v Value) { values = append(values, v) },
	})

	tr.inject("[1,42,notanumber]")
	tr.inject("[1,99,5]") // unknown handle
	e.Step()

	assert.Empty(t, values, "neither malformed nor unbound updates may reach the callback")
	assert.Equal(t, uint64(1), e.Metrics().DecodeErrCount.Load())

	// The engine still works afterward.
	tr.inject("[1,42,5]")
	e.Step()
	require.Len(t, values, 1)
	assert.Equal(t, int64(5), values[0].Int)
}

func TestEngine_ValueShapes(t *testing.T) {
	e, tr, _ := newTestEngine(t)
	autoResolve(tr, map[string]int{"sim/multi": 42})

	var values []Value
	startSession(t, e, tr, HandlerFuncs{
		Ready: func() { e.RegisterDataRef("sim/multi") },
		Value: func(v Value) { values = append(values, v) },
	})

	tr.inject("[2,42,3.1416]")
	tr.inject("[3,42,5,9]")
	tr.inject("[4,42,0,-2.5000]")
	tr.inject("[9,42,11,hello,world]")
	e.Step()

	require.Len(t, values, 4)

	assert.Equal(t, KindFloat, values[0].Kind)
	assert.InDelta(t, 3.1416, values[0].Float, 1e-9)

	assert.Equal(t, KindIntArray, values[1].Kind)
	assert.Equal(t, 5, values[1].Element)
	assert.Equal(t, int64(9), values[1].Int)

	assert.Equal(t, KindFloatArray, values[2].Kind)
	assert.InDelta(t, -2.5, values[2].Float, 1e-9)

	assert.Equal(t, KindString, values[3].Kind)
	assert.Equal(t, "hello,world", values[3].Str)
}

func TestEngine_ForcedDoubleKind(t *testing.T) {
	e, tr, _ := newTestEngine(t)
	autoResolve(tr, map[string]int{"sim/alt": 42})

	var values []Value
	startSession(t, e, tr, HandlerFuncs{
		Ready: func() { e.RegisterDataRef("sim/alt") },
		Value: func(v Value) { values = append(values, v) },
	})

	require.NoError(t, e.RequestUpdatesType(42, TypeDouble, 100, 0.0001))
	assert.Equal(t, "[y,42,4,100,0.0001]", tr.lastWrite())

	tr.inject("[2,42,12345.6789]")
	e.Step()

	require.Len(t, values, 1)
	assert.Equal(t, KindDouble, values[0].Kind)
	assert.InDelta(t, 12345.6789, values[0].Float, 1e-9)
}

func TestEngine_PauseHoldsWholeFrames(t *testing.T) {
	e, tr, _ := newTestEngine(t)
	autoResolve(tr, map[string]int{"sim/cockpit/switch1": 42})

	startSession(t, e, tr, HandlerFuncs{
		Ready: func() { e.RegisterDataRef("sim/cockpit/switch1") },
	})

	tr.inject("[p]")
	e.Step()
	sent := len(tr.writes)

	require.NoError(t, e.WriteInt(42, 1))
	require.NoError(t, e.WriteInt(42, 2))
	assert.Len(t, tr.writes, sent, "paused flow must hold outbound frames")

	tr.inject("[q]")
	e.Step()
	require.Len(t, tr.writes, sent+2)
	assert.Equal(t, "[1,42,1]", tr.writes[sent], "held frames drain in order")
	assert.Equal(t, "[1,42,2]", tr.writes[sent+1])
	assertWholeFrames(t, tr.writes)
}

func TestEngine_RateLimitDelaysWholeFrames(t *testing.T) {
	e, tr, clk := newTestEngine(t)
	autoResolve(tr, map[string]int{"sim/cockpit/switch1": 42})

	startSession(t, e, tr, HandlerFuncs{
		Ready: func() { e.RegisterDataRef("sim/cockpit/switch1") },
	})

	tr.inject("[f,10]")
	e.Step()
	e.flow.tokens = 0 // start from an empty bucket

	sent := len(tr.writes)
	require.NoError(t, e.WriteInt(42, 1)) // "[1,42,1]" is 8 bytes
	require.NoError(t, e.WriteInt(42, 2))
	assert.Len(t, tr.writes, sent, "no tokens, no frames")

	clk.advance(time.Second) // 10 tokens: room for exactly one frame
	e.Step()
	require.Len(t, tr.writes, sent+1)
	assert.Equal(t, "[1,42,1]", tr.writes[sent])

	clk.advance(time.Second)
	e.Step()
	require.Len(t, tr.writes, sent+2)
	assert.Equal(t, "[1,42,2]", tr.writes[sent+1])

	assertWholeFrames(t, tr.writes)
}

func TestEngine_CommandStartEndBalance(t *testing.T) {
	e, tr, _ := newTestEngine(t)
	autoResolve(tr, map[string]int{"sim/autopilot/toggle": 7})

	handle := HandleInvalid
	startSession(t, e, tr, HandlerFuncs{
		Ready: func() { handle = e.RegisterCommand("sim/autopilot/toggle") },
	})
	require.Equal(t, 7, handle)
	assert.Contains(t, tr.writes, "[m,sim/autopilot/toggle]")

	require.NoError(t, e.CommandStart(7))
	assert.Equal(t, "[i,7]", tr.lastWrite())

	sent := len(tr.writes)
	assert.ErrorIs(t, e.CommandStart(7), ErrCommandHeld)
	assert.Len(t, tr.writes, sent, "a rejected start must not emit a frame")

	require.NoError(t, e.CommandEnd(7))
	assert.Equal(t, "[j,7]", tr.lastWrite())
	assert.ErrorIs(t, e.CommandEnd(7), ErrCommandNotHeld)

	require.NoError(t, e.CommandTrigger(7))
	assert.Equal(t, "[k,7,1]", tr.lastWrite())
	require.NoError(t, e.CommandTriggerN(7, 3))
	assert.Equal(t, "[k,7,3]", tr.lastWrite())

	// Command handles are not dataref handles.
	assert.ErrorIs(t, e.WriteInt(7, 1), ErrInvalidHandle)
}

func TestEngine_SubscriptionAndScalingFrames(t *testing.T) {
	e, tr, _ := newTestEngine(t)
	autoResolve(tr, map[string]int{"sim/pos": 5})

	startSession(t, e, tr, HandlerFuncs{
		Ready: func() { e.RegisterDataRef("sim/pos") },
	})

	require.NoError(t, e.RequestUpdates(5, 100, 0.5))
	assert.Equal(t, "[r,5,100,0.5000]", tr.lastWrite())

	require.NoError(t, e.RequestUpdatesElement(5, 100, 0.5, 3))
	assert.Equal(t, "[t,5,100,0.5000,3]", tr.lastWrite())

	require.NoError(t, e.RequestUpdatesTypeElement(5, TypeFloatArray, 50, 0.25, 2))
	assert.Equal(t, "[w,5,8,50,0.2500,2]", tr.lastWrite())

	require.NoError(t, e.SetScaling(5, 0, 1023, 0, 360))
	assert.Equal(t, "[u,5,0,1023,0,360]", tr.lastWrite())

	require.NoError(t, e.Touch(5))
	assert.Equal(t, "[d,5]", tr.lastWrite())

	require.NoError(t, e.WriteFloat(5, 1.25))
	assert.Equal(t, "[2,5,1.2500]", tr.lastWrite())

	require.NoError(t, e.WriteIntElement(5, 2, -7))
	assert.Equal(t, "[3,5,2,-7]", tr.lastWrite())

	require.NoError(t, e.WriteFloatElement(5, 1, 0.5))
	assert.Equal(t, "[4,5,1,0.5000]", tr.lastWrite())
}

func TestEngine_SpecialAndTextFrames(t *testing.T) {
	e, tr, _ := newTestEngine(t)
	startSession(t, e, tr, HandlerFuncs{})

	require.NoError(t, e.SimulateKeyPress(1, 65))
	assert.Equal(t, "[$,1,1,65]", tr.lastWrite())

	require.NoError(t, e.CommandKeyStroke(5))
	assert.Equal(t, "[$,2,5]", tr.lastWrite())

	require.NoError(t, e.CommandButtonPress(9))
	assert.Equal(t, "[$,3,9]", tr.lastWrite())

	require.NoError(t, e.CommandButtonRelease(9))
	assert.Equal(t, "[$,4,9]", tr.lastWrite())

	require.NoError(t, e.SendDebugMessage("hi [there]"))
	assert.Equal(t, "[g,hi  there ]", tr.lastWrite())

	require.NoError(t, e.SendSpeakMessage("gear down, locked"))
	assert.Equal(t, "[s,gear down, locked]", tr.lastWrite())
}

func TestEngine_FlowRequestsToHost(t *testing.T) {
	e, tr, _ := newTestEngine(t)
	startSession(t, e, tr, HandlerFuncs{})

	require.NoError(t, e.PauseFlow())
	assert.Equal(t, "[p]", tr.lastWrite())

	require.NoError(t, e.ResumeFlow())
	assert.Equal(t, "[q]", tr.lastWrite())

	require.NoError(t, e.SetFlowRate(4800))
	assert.Equal(t, "[f,4800]", tr.lastWrite())

	// Asking the host to pause must not gate the device's own output.
	require.NoError(t, e.SendDebugMessage("still talking"))
	assert.Equal(t, "[g,still talking]", tr.lastWrite())
}

func TestEngine_RequestReset(t *testing.T) {
	e, tr, _ := newTestEngine(t)
	autoResolve(tr, map[string]int{"sim/cockpit/switch1": 42})

	disconnects := 0
	startSession(t, e, tr, HandlerFuncs{
		Ready:      func() { e.RegisterDataRef("sim/cockpit/switch1") },
		Disconnect: func() { disconnects++ },
	})
	require.True(t, e.ConnectionStatus())

	e.RequestReset()
	assert.Contains(t, tr.writes, "[z]")
	assert.Equal(t, 1, disconnects)
	assert.False(t, e.ConnectionStatus())
	assert.ErrorIs(t, e.WriteInt(42, 1), ErrInvalidHandle)
}

func TestEngine_OversizeInboundFrameRecovers(t *testing.T) {
	e, tr, _ := newTestEngine(t, WithMaxFrameSize(32))
	autoResolve(tr, map[string]int{"sim/cockpit/switch1": 42})

	var values []Value
	startSession(t, e, tr, HandlerFuncs{
		Ready: func() { e.RegisterDataRef("sim/cockpit/switch1") },
		Value: func(v Value) { values = append(values, v) },
	})

	tr.inject("[9,42,60," + strings.Repeat("a", 60) + "]")
	tr.inject("[1,42,5]")
	e.Step()

	require.Len(t, values, 1, "the oversize frame is dropped, the next one parses")
	assert.Equal(t, int64(5), values[0].Int)
}

func TestEngine_PendingReceiveBufferSize(t *testing.T) {
	e, tr, _ := newTestEngine(t)
	require.NoError(t, e.Begin("TestDevice", nil))

	assert.Zero(t, e.PendingReceiveBufferSize())

	tr.inject("[1,4")
	e.Step()
	assert.Equal(t, 3, e.PendingReceiveBufferSize())
}

func TestEngine_NameInquiryWhileActiveKeepsSession(t *testing.T) {
	e, tr, _ := newTestEngine(t)
	autoResolve(tr, map[string]int{"sim/cockpit/switch1": 42})

	startSession(t, e, tr, HandlerFuncs{
		Ready: func() { e.RegisterDataRef("sim/cockpit/switch1") },
	})
	require.True(t, e.ConnectionStatus())

	tr.inject("[N]")
	assert.True(t, e.Step(), "re-identification must not tear the session down")
	assert.Equal(t, "[n,TestDevice]", tr.writes[len(tr.writes)-2])
	assert.NoError(t, e.WriteInt(42, 1), "handles survive re-identification")
}
