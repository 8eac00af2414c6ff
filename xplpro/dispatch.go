package xplpro

import "fmt"

// dispatchTable is the static mapping from inbound command code to handler.
// Commands absent from the table are dropped silently so newer hosts remain
// compatible with older devices.
var dispatchTable = map[byte]func(*Engine, string){
	cmdSendName:    (*Engine).handleNameInquiry,
	cmdSendRequest: (*Engine).handleReadySignal,
	rspDataref:     (*Engine).handleDatarefResponse,
	rspCommand:     (*Engine).handleCommandResponse,
	cmdExiting:     (*Engine).handleExiting,

	cmdUpdateInt:        (*Engine).handleUpdateInt,
	cmdUpdateFloat:      (*Engine).handleUpdateFloat,
	cmdUpdateIntArray:   (*Engine).handleUpdateIntArray,
	cmdUpdateFloatArray: (*Engine).handleUpdateFloatArray,
	cmdUpdateString:     (*Engine).handleUpdateString,

	cmdFlowPause:  (*Engine).handleFlowPause,
	cmdFlowResume: (*Engine).handleFlowResume,
	cmdFlowSpeed:  (*Engine).handleFlowSpeed,
}

// dispatch routes one complete frame to its handler.
func (e *Engine) dispatch(frame []byte) {
	cmd, payload, ok := splitPayload(frame)
	if !ok {
		e.metrics.incFrameDropCount()
		return
	}

	e.metrics.incFrameRecvCount()

	handler, ok := dispatchTable[cmd]
	if !ok {
		e.metrics.incFrameDropCount()
		e.log.Debug("unknown command dropped", "cmd", string(rune(cmd)))

		return
	}

	handler(e, payload)
}

// --- Session handlers ---

// handleNameInquiry replies with the device name and build identifier. From a
// fresh session this arms the ready-signal wait; an active session just
// re-identifies, keeping its resolved handles.
func (e *Engine) handleNameInquiry(_ string) {
	active := e.State().IsActive()
	if !active {
		e.setState(NameRequestedState)
	}

	if err := e.send(buildFrame(rspName, e.deviceName)); err != nil {
		e.log.Error("failed to send name reply", "error", err)
		return
	}
	if err := e.send(buildFrame(rspVersion, e.cfg.VersionString())); err != nil {
		e.log.Error("failed to send version reply", "error", err)
		return
	}

	if !active {
		e.awaitingSince = e.now()
		e.setState(AwaitingReadyState)
	}

	e.log.Info("identified to host", "device", e.deviceName, "active", active)
}

// handleReadySignal runs the application's registration callback and
// activates the session.
func (e *Engine) handleReadySignal(_ string) {
	if e.State() != AwaitingReadyState {
		e.log.Debug("ready signal ignored", "state", e.State())
		return
	}

	e.setState(RegisteringState)
	e.handler.OnReady()

	// A registration timeout inside OnReady tears the session down; only an
	// intact registration phase activates it.
	if e.State() == RegisteringState {
		e.setState(ActiveState)
		e.log.Info("session active", "device", e.deviceName)
	}
}

func (e *Engine) handleDatarefResponse(payload string) {
	e.handleHandleResponse(BindingDataref, payload)
}

func (e *Engine) handleCommandResponse(payload string) {
	e.handleHandleResponse(BindingCommand, payload)
}

// handleHandleResponse decodes "handle, name" and resolves the oldest
// in-flight registration request.
func (e *Engine) handleHandleResponse(kind BindingKind, payload string) {
	parts, err := fieldsTail(payload, 2)
	if err != nil {
		e.dropMalformed(err)
		return
	}
	handle, err := parseInt(parts[0])
	if err != nil {
		e.dropMalformed(err)
		return
	}

	if e.registry.resolve(kind, int(handle), parts[1]) && handle >= 0 {
		e.metrics.incRegisterCount()
	}
}

func (e *Engine) handleExiting(_ string) {
	e.disconnect("host exiting")
}

// --- Value update handlers ---

func (e *Engine) handleUpdateInt(payload string) {
	v, err := decodeScalarUpdate(payload, KindInt)
	e.deliverValue(v, err)
}

func (e *Engine) handleUpdateFloat(payload string) {
	v, err := decodeScalarUpdate(payload, KindFloat)
	e.deliverValue(v, err)
}

func (e *Engine) handleUpdateIntArray(payload string) {
	v, err := decodeArrayUpdate(payload, KindIntArray)
	e.deliverValue(v, err)
}

func (e *Engine) handleUpdateFloatArray(payload string) {
	v, err := decodeArrayUpdate(payload, KindFloatArray)
	e.deliverValue(v, err)
}

func (e *Engine) handleUpdateString(payload string) {
	v, err := decodeStringUpdate(payload)
	e.deliverValue(v, err)
}

// deliverValue forwards a decoded update to the application callback. Updates
// that fail to decode, or that name a handle with no binding, are dropped
// without a callback.
func (e *Engine) deliverValue(v Value, err error) {
	if err != nil {
		e.dropMalformed(err)
		return
	}

	b, ok := e.registry.lookup(v.Handle)
	if !ok {
		e.metrics.incFrameDropCount()
		e.log.Debug("update for unknown handle dropped", "handle", v.Handle)

		return
	}

	if v.Kind == KindFloat && b.forcedType == TypeDouble {
		v.Kind = KindDouble
	}

	e.handler.OnValue(v)
}

// --- Flow control handlers ---

func (e *Engine) handleFlowPause(_ string) {
	e.flow.pause()
	e.log.Debug("outbound flow paused by host")
}

func (e *Engine) handleFlowResume(_ string) {
	e.flow.resume(e.now())
	e.log.Debug("outbound flow resumed by host")
}

func (e *Engine) handleFlowSpeed(payload string) {
	parts, err := fields(payload, 1)
	if err != nil {
		e.dropMalformed(err)
		return
	}
	rate, err := parseInt(parts[0])
	if err != nil {
		e.dropMalformed(err)
		return
	}
	if rate < 0 {
		e.dropMalformed(fmt.Errorf("%w: negative flow rate %d", ErrDecodeField, rate))
		return
	}

	e.flow.setRate(uint(rate), e.now())
	e.log.Debug("outbound flow rate set by host", "bytes_per_second", rate)
}

func (e *Engine) dropMalformed(err error) {
	e.metrics.incDecodeErrCount()
	e.metrics.incFrameDropCount()
	e.log.Debug("malformed frame dropped", "error", err)
}
