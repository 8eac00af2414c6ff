package xplpro

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/GioCC/XPLPro-Official/internal/queue"
	"github.com/GioCC/XPLPro-Official/logger"
)

// Version is the library build identifier reported to the host in the reply
// to its name inquiry, unless overridden with WithVersionString.
const Version = "XPLPro-Go/1.2.0"

// Engine is the device-side XPLPro protocol engine. One engine owns one
// transport and all protocol state for that link; create one per serial port.
//
// The engine is cooperative and single-threaded: call Begin once, then call
// Step from the application's poll loop. Registration methods may only be
// called from within the handler's OnReady callback (or while the session is
// active); all other request methods require a resolved handle and therefore
// an established session.
type Engine struct {
	cfg       *Config
	transport Transport
	log       logger.Logger

	deviceName string
	handler    DeviceHandler

	// state is atomic so ConnectionStatus can be polled off the step
	// goroutine; all transitions happen on the step goroutine.
	state atomic.Uint32

	deframer *deframer
	flow     *flowController
	registry *registry
	outbound *queue.Queue[[]byte]

	// awaitingSince is the start of the ready-signal wait, gated by the
	// response timeout rather than the frame receive timeout.
	awaitingSince time.Time

	metrics EngineMetrics

	// readBufs holds one read buffer per pump nesting level: the step loop's
	// pump, plus the nested pump run by a registration call inside OnReady.
	// A nested pump must not reuse the outer pump's buffer while the outer
	// loop is still iterating over it.
	readBufs  [2][]byte
	pumpDepth int

	// now is the wall clock, injectable for deterministic tests.
	now func() time.Time

	began    bool
	stepping bool
}

// New creates a protocol engine over the given transport.
func New(t Transport, opts ...Option) (*Engine, error) {
	if t == nil {
		return nil, ErrTransportNil
	}

	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		transport: t,
		log:       cfg.GetLogger(),
		deframer:  newDeframer(cfg.MaxFrameSize(), cfg.ReceiveTimeout()),
		flow:      newFlowController(cfg.MaxFrameSize() + 2),
		outbound:  queue.New[[]byte](DefaultOutboundQueueSize),
		now:       time.Now,
	}
	for i := range e.readBufs {
		e.readBufs[i] = make([]byte, cfg.MaxFrameSize())
	}
	e.registry = newRegistry(e.log)
	e.state.Store(uint32(IdleState))

	return e, nil
}

// Begin registers the device identity and handler and arms the engine. The
// session itself is established later, driven by the host's name inquiry.
// A nil handler is valid; lifecycle events and values are then discarded.
func (e *Engine) Begin(deviceName string, handler DeviceHandler) error {
	if deviceName == "" {
		return ErrDeviceNameEmpty
	}
	if handler == nil {
		handler = HandlerFuncs{}
	}

	e.deviceName = deviceName
	e.handler = handler
	e.began = true

	e.log.Info("engine started", "device", deviceName,
		"max_frame_size", e.cfg.MaxFrameSize(),
		"receive_timeout", e.cfg.ReceiveTimeout(),
		"response_timeout", e.cfg.ResponseTimeout(),
	)

	return nil
}

// Step performs one bounded, non-blocking protocol iteration: it drains the
// bytes currently available on the transport, dispatches every frame they
// complete, evaluates timeouts, and flushes outbound frames the flow gate
// admits. It returns the connection status.
//
// Step must be called repeatedly from the application's idle loop. Calling it
// re-entrantly from a handler callback is not allowed and is ignored.
func (e *Engine) Step() bool {
	if !e.began || e.stepping {
		return e.ConnectionStatus()
	}
	e.stepping = true
	defer func() { e.stepping = false }()

	now := e.now()
	e.pump(now)
	e.checkTimeouts(e.now())
	e.flush(e.now())

	return e.ConnectionStatus()
}

// ConnectionStatus reports whether the session is established. It is safe to
// call from any goroutine.
func (e *Engine) ConnectionStatus() bool {
	return e.State().IsActive()
}

// State returns the current session state. It is safe to call from any
// goroutine.
func (e *Engine) State() ConnState {
	return ConnState(e.state.Load())
}

// PendingReceiveBufferSize returns the number of bytes buffered for the frame
// currently being received.
func (e *Engine) PendingReceiveBufferSize() int {
	return e.deframer.pending()
}

// Metrics returns the engine's metrics counters.
func (e *Engine) Metrics() *EngineMetrics {
	return &e.metrics
}

// --- Registration ---

// RegisterDataRef registers a dataref name with the host and returns its
// handle, or HandleInvalid if the host does not know the name, the response
// times out, or no session is being established. It must be called from
// within OnReady (or while the session is active).
func (e *Engine) RegisterDataRef(name string) int {
	return e.register(name, BindingDataref, reqRegisterDataref)
}

// RegisterCommand registers a command name with the host and returns its
// handle, or HandleInvalid. See RegisterDataRef for the calling rules.
func (e *Engine) RegisterCommand(name string) int {
	return e.register(name, BindingCommand, reqRegisterCommand)
}

// register sends one register-by-name request and cooperatively polls the
// transport until the correlated response arrives or the response timeout
// expires. A timeout is a connection failure: the session is torn down and
// the disconnect callback fires.
func (e *Engine) register(name string, kind BindingKind, code byte) int {
	if !e.began || name == "" {
		return HandleInvalid
	}
	if st := e.State(); st != RegisteringState && st != ActiveState {
		e.log.Warn("registration outside a session", "name", name, "state", st)
		return HandleInvalid
	}

	now := e.now()
	p := e.registry.beginRegistration(name, kind, now)

	if err := e.send(buildFrame(code, name)); err != nil {
		e.log.Error("failed to send registration request", "name", name, "error", err)
		return HandleInvalid
	}

	deadline := now.Add(e.cfg.ResponseTimeout())
	for !p.done {
		now = e.now()
		if now.After(deadline) {
			e.log.Error("registration failed", "kind", kind, "name", name,
				"error", ErrRegistrationTimeout)
			e.disconnect("registration timeout")

			return HandleInvalid
		}

		e.pump(now)
		e.expireReceive(now)
		e.flush(now)

		// The host may disconnect while we wait; the response is then stale.
		if st := e.State(); st != RegisteringState && st != ActiveState {
			return HandleInvalid
		}
	}

	if p.handle < 0 {
		e.log.Warn("name not found by host", "kind", kind, "name", name)
		return HandleInvalid
	}

	e.log.Info("registered", "kind", kind, "name", name, "handle", p.handle)

	return p.handle
}

// --- Dataref writes ---

// WriteInt writes an integer value to a registered dataref.
func (e *Engine) WriteInt(handle int, value int64) error {
	if _, err := e.registry.lookupKind(handle, BindingDataref); err != nil {
		return err
	}

	return e.send(buildFrame(cmdUpdateInt, strconv.Itoa(handle), encodeInt(value)))
}

// WriteIntElement writes an integer value to one element of a registered
// array dataref.
func (e *Engine) WriteIntElement(handle, element int, value int64) error {
	if _, err := e.registry.lookupKind(handle, BindingDataref); err != nil {
		return err
	}
	if element < 0 {
		return fmt.Errorf("%w: negative array element %d", ErrInvalidHandle, element)
	}

	return e.send(buildFrame(cmdUpdateIntArray,
		strconv.Itoa(handle), strconv.Itoa(element), encodeInt(value)))
}

// WriteFloat writes a floating point value to a registered dataref.
func (e *Engine) WriteFloat(handle int, value float64) error {
	if _, err := e.registry.lookupKind(handle, BindingDataref); err != nil {
		return err
	}

	return e.send(buildFrame(cmdUpdateFloat,
		strconv.Itoa(handle), encodeFloat(value, e.cfg.FloatPrecision())))
}

// WriteFloatElement writes a floating point value to one element of a
// registered array dataref.
func (e *Engine) WriteFloatElement(handle, element int, value float64) error {
	if _, err := e.registry.lookupKind(handle, BindingDataref); err != nil {
		return err
	}
	if element < 0 {
		return fmt.Errorf("%w: negative array element %d", ErrInvalidHandle, element)
	}

	return e.send(buildFrame(cmdUpdateFloatArray,
		strconv.Itoa(handle), strconv.Itoa(element), encodeFloat(value, e.cfg.FloatPrecision())))
}

// Touch asks the host to re-send the current value of a dataref once, outside
// its subscription rate.
func (e *Engine) Touch(handle int) error {
	if _, err := e.registry.lookupKind(handle, BindingDataref); err != nil {
		return err
	}

	return e.send(buildFrame(reqTouch, strconv.Itoa(handle)))
}

// --- Subscriptions ---

// RequestUpdates subscribes to a dataref. rate limits updates to at most one
// per rate milliseconds; precision is the minimum change that triggers an
// update for floating datarefs.
func (e *Engine) RequestUpdates(handle int, rate int, precision float64) error {
	if _, err := e.registry.lookupKind(handle, BindingDataref); err != nil {
		return err
	}

	return e.send(buildFrame(reqUpdates, strconv.Itoa(handle),
		strconv.Itoa(rate), encodeFloat(precision, e.cfg.FloatPrecision())))
}

// RequestUpdatesElement subscribes to one element of an array dataref.
func (e *Engine) RequestUpdatesElement(handle int, rate int, precision float64, element int) error {
	if _, err := e.registry.lookupKind(handle, BindingDataref); err != nil {
		return err
	}

	return e.send(buildFrame(reqUpdatesArray, strconv.Itoa(handle),
		strconv.Itoa(rate), encodeFloat(precision, e.cfg.FloatPrecision()), strconv.Itoa(element)))
}

// RequestUpdatesType subscribes to a dataref forcing the given value type,
// for datarefs that publish more than one representation. A TypeDouble-forced
// handle surfaces its updates as KindDouble.
func (e *Engine) RequestUpdatesType(handle int, typ DataType, rate int, precision float64) error {
	b, err := e.registry.lookupKind(handle, BindingDataref)
	if err != nil {
		return err
	}
	b.forcedType = typ

	return e.send(buildFrame(reqUpdatesType, strconv.Itoa(handle), strconv.Itoa(int(typ)),
		strconv.Itoa(rate), encodeFloat(precision, e.cfg.FloatPrecision())))
}

// RequestUpdatesTypeElement subscribes to one element of an array dataref,
// forcing the given value type.
func (e *Engine) RequestUpdatesTypeElement(handle int, typ DataType, rate int, precision float64, element int) error {
	b, err := e.registry.lookupKind(handle, BindingDataref)
	if err != nil {
		return err
	}
	b.forcedType = typ

	return e.send(buildFrame(reqUpdatesTypeArray, strconv.Itoa(handle), strconv.Itoa(int(typ)),
		strconv.Itoa(rate), encodeFloat(precision, e.cfg.FloatPrecision()), strconv.Itoa(element)))
}

// SetScaling asks the host to map dataref values from [inLow, inHigh] to
// [outLow, outHigh] before sending them, offloading range mapping from the
// device.
func (e *Engine) SetScaling(handle int, inLow, inHigh, outLow, outHigh int64) error {
	if _, err := e.registry.lookupKind(handle, BindingDataref); err != nil {
		return err
	}

	return e.send(buildFrame(reqScaling, strconv.Itoa(handle),
		encodeInt(inLow), encodeInt(inHigh), encodeInt(outLow), encodeInt(outHigh)))
}

// --- Commands ---

// CommandTrigger triggers a registered command once.
func (e *Engine) CommandTrigger(handle int) error {
	return e.CommandTriggerN(handle, 1)
}

// CommandTriggerN triggers a registered command count times.
func (e *Engine) CommandTriggerN(handle int, count int) error {
	if _, err := e.registry.lookupKind(handle, BindingCommand); err != nil {
		return err
	}
	if count < 1 {
		return fmt.Errorf("%w: trigger count %d", ErrInvalidHandle, count)
	}

	return e.send(buildFrame(cmdTrigger, strconv.Itoa(handle), strconv.Itoa(count)))
}

// CommandStart begins holding a registered command, like pressing and holding
// a button. Every start must be balanced by a CommandEnd before the command
// may be started again.
func (e *Engine) CommandStart(handle int) error {
	if err := e.registry.holdCommand(handle); err != nil {
		return err
	}

	if err := e.send(buildFrame(cmdStart, strconv.Itoa(handle))); err != nil {
		e.registry.releaseCommand(handle) //nolint:errcheck // undo the hold, frame never left
		return err
	}

	return nil
}

// CommandEnd releases a command held by a prior CommandStart.
func (e *Engine) CommandEnd(handle int) error {
	if err := e.registry.releaseCommand(handle); err != nil {
		return err
	}

	if err := e.send(buildFrame(cmdEnd, strconv.Itoa(handle))); err != nil {
		e.registry.holdCommand(handle) //nolint:errcheck // undo the release, frame never left
		return err
	}

	return nil
}

// --- Special sub-commands ---

// SimulateKeyPress injects a raw simulator key press.
func (e *Engine) SimulateKeyPress(keyType, key int) error {
	return e.sendSpecial(specialSimKeyPress, keyType, key)
}

// CommandKeyStroke injects a simulator command keystroke.
func (e *Engine) CommandKeyStroke(key int) error {
	return e.sendSpecial(specialCmdKeystroke, key)
}

// CommandButtonPress presses a simulator joystick button. Every press should
// be balanced with a CommandButtonRelease.
func (e *Engine) CommandButtonPress(button int) error {
	return e.sendSpecial(specialCmdButtonPress, button)
}

// CommandButtonRelease releases a simulator joystick button.
func (e *Engine) CommandButtonRelease(button int) error {
	return e.sendSpecial(specialCmdButtonRelease, button)
}

func (e *Engine) sendSpecial(sub int, args ...int) error {
	if !e.ConnectionStatus() {
		return ErrNotConnected
	}

	parts := make([]string, 0, 1+len(args))
	parts = append(parts, strconv.Itoa(sub))
	for _, a := range args {
		parts = append(parts, strconv.Itoa(a))
	}

	return e.send(buildFrame(cmdSpecial, parts...))
}

// --- Text, reset, flow requests ---

// SendDebugMessage sends text for the host to write to its log. Frame
// delimiter bytes in the text are replaced with spaces.
func (e *Engine) SendDebugMessage(msg string) error {
	if !e.began {
		return ErrNotStarted
	}

	return e.send(buildFrame(cmdDebug, sanitizeText(msg)))
}

// SendSpeakMessage sends text for the simulator to speak. Frame delimiter
// bytes in the text are replaced with spaces.
func (e *Engine) SendSpeakMessage(msg string) error {
	if !e.began {
		return ErrNotStarted
	}

	return e.send(buildFrame(cmdSpeak, sanitizeText(msg)))
}

// RequestReset asks the host for a full reset and re-registration, then tears
// the local session down. The handshake restarts on the host's next name
// inquiry. Safe to call from any state.
func (e *Engine) RequestReset() {
	if !e.began {
		return
	}

	if err := e.send(buildFrame(cmdReset)); err != nil {
		e.log.Error("failed to send reset request", "error", err)
	}
	e.flush(e.now())
	e.disconnect("reset requested")
}

// PauseFlow asks the host to pause its update stream. The device's own
// outbound gate only changes when the host commands it.
func (e *Engine) PauseFlow() error {
	if !e.began {
		return ErrNotStarted
	}

	return e.send(buildFrame(cmdFlowPause))
}

// ResumeFlow asks the host to resume its update stream.
func (e *Engine) ResumeFlow() error {
	if !e.began {
		return ErrNotStarted
	}

	return e.send(buildFrame(cmdFlowResume))
}

// SetFlowRate asks the host to throttle its update stream to bytesPerSecond
// (0 = unlimited). Throttling delays whole frames, it never splits one.
func (e *Engine) SetFlowRate(bytesPerSecond uint) error {
	if !e.began {
		return ErrNotStarted
	}

	return e.send(buildFrame(cmdFlowSpeed, strconv.FormatUint(uint64(bytesPerSecond), 10)))
}

// --- Internals ---

// pump drains the bytes currently available on the transport and dispatches
// every frame they complete. It never blocks: a transport with nothing
// pending returns a zero-length read.
func (e *Engine) pump(now time.Time) {
	if e.pumpDepth >= len(e.readBufs) {
		// Nesting deeper than OnReady's registration polling is not a
		// supported call pattern.
		return
	}
	buf := e.readBufs[e.pumpDepth]
	e.pumpDepth++
	defer func() { e.pumpDepth-- }()

	for {
		n, err := e.transport.Read(buf)
		if n > 0 {
			e.metrics.addBytesRecv(n)
			for _, b := range buf[:n] {
				if frame, ok := e.deframer.feed(b, now); ok {
					e.dispatch(frame)
				}
			}
		}
		if err != nil {
			e.log.Error("transport read failed", "error", err)
			return
		}
		if n == 0 {
			return
		}
	}
}

// checkTimeouts evaluates the two timeout tiers: the fast per-frame receive
// timeout and the long host-readiness timeout.
func (e *Engine) checkTimeouts(now time.Time) {
	e.expireReceive(now)

	if e.State() == AwaitingReadyState && now.Sub(e.awaitingSince) > e.cfg.ResponseTimeout() {
		e.log.Warn("host ready signal timeout", "waited", now.Sub(e.awaitingSince))
		e.disconnect("ready signal timeout")
	}
}

func (e *Engine) expireReceive(now time.Time) {
	if e.deframer.expire(now) {
		e.metrics.incRecvTimeoutCount()
		e.metrics.incFrameDropCount()
		e.log.Debug("partial frame dropped by receive timeout")
	}
}

// send transmits one frame immediately when the flow gate admits it and
// nothing is queued ahead of it; otherwise the frame joins the outbound queue
// in order. Frames are never fragmented.
func (e *Engine) send(frame []byte) error {
	if len(frame) > e.cfg.MaxFrameSize()+2 {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(frame))
	}

	if e.outbound.IsEmpty() && e.flow.canSend(len(frame), e.now()) {
		if err := e.write(frame); err != nil {
			return err
		}
		e.flow.onSent(len(frame))

		return nil
	}

	e.outbound.Enqueue(frame)

	return nil
}

// flush writes queued outbound frames, oldest first, for as long as the flow
// gate admits them.
func (e *Engine) flush(now time.Time) {
	for {
		frame, ok := e.outbound.Peek()
		if !ok {
			return
		}
		if !e.flow.canSend(len(frame), now) {
			return
		}

		e.outbound.Dequeue()
		if err := e.write(frame); err != nil {
			e.log.Error("transport write failed", "error", err)
			return
		}
		e.flow.onSent(len(frame))
	}
}

// write puts one whole frame on the transport in a single call.
func (e *Engine) write(frame []byte) error {
	n, err := e.transport.Write(frame)
	if err != nil {
		return err
	}
	if n != len(frame) {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrShortWrite, n, len(frame))
	}

	e.metrics.incFrameSendCount()
	e.metrics.addBytesSent(n)

	return nil
}

// disconnect tears the session down: it clears all handle bindings and queued
// frames, fires the disconnect callback once, and returns to the idle state
// ready for the next handshake. It is idempotent.
func (e *Engine) disconnect(reason string) {
	st := e.State()
	if st == IdleState || st == DisconnectedState {
		return
	}

	e.setState(DisconnectedState)
	e.metrics.incDisconnectCount()
	e.log.Info("session disconnected", "reason", reason, "prev_state", st)

	e.registry.clear()
	e.outbound.Reset()
	e.handler.OnDisconnect()

	e.setState(IdleState)
}

func (e *Engine) setState(state ConnState) {
	prev := e.State()
	if prev == state {
		return
	}
	e.state.Store(uint32(state))
	e.log.Debug("state transition", "from", prev, "to", state)
}
