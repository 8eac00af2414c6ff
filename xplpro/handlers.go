package xplpro

// DeviceHandler receives session lifecycle events and dataref updates from the
// protocol engine. All methods are invoked synchronously from within
// [Engine.Step]; implementations must not call Step re-entrantly.
type DeviceHandler interface {
	// OnReady is called once the host signals it is ready to accept
	// registrations. The implementation should call RegisterDataRef,
	// RegisterCommand and the subscription methods here. When OnReady
	// returns, the session becomes active.
	OnReady()

	// OnDisconnect is called when the session ends: host shutdown notice,
	// response timeout, or an application reset request. Handle bindings are
	// already cleared when it fires; the application must re-register after
	// the next handshake.
	OnDisconnect()

	// OnValue is called with each decoded dataref update. The Value is not
	// retained by the engine after the call returns.
	OnValue(v Value)
}

// HandlerFuncs adapts plain functions to the DeviceHandler interface.
// Nil members are simply skipped, so partial handlers are valid.
type HandlerFuncs struct {
	Ready      func()
	Disconnect func()
	Value      func(v Value)
}

var _ DeviceHandler = HandlerFuncs{}

func (h HandlerFuncs) OnReady() {
	if h.Ready != nil {
		h.Ready()
	}
}

func (h HandlerFuncs) OnDisconnect() {
	if h.Disconnect != nil {
		h.Disconnect()
	}
}

func (h HandlerFuncs) OnValue(v Value) {
	if h.Value != nil {
		h.Value(v)
	}
}
