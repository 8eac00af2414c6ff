package xplpro

import (
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/GioCC/XPLPro-Official/internal/queue"
	"github.com/GioCC/XPLPro-Official/logger"
)

// BindingKind distinguishes dataref bindings from command bindings.
type BindingKind uint8

const (
	// BindingDataref is a named simulator value.
	BindingDataref BindingKind = iota
	// BindingCommand is a named simulator action.
	BindingCommand
)

// String returns the string representation of the kind.
func (k BindingKind) String() string {
	switch k {
	case BindingDataref:
		return "dataref"
	case BindingCommand:
		return "command"
	default:
		return "unknown"
	}
}

// Binding is one resolved name→handle mapping. Bindings are created by the
// registration handshake and discarded on disconnect or reset.
type Binding struct {
	Name   string
	Kind   BindingKind
	Handle int

	// forcedType is the data type the application forced for this handle via
	// a type-forced subscription, TypeUnknown otherwise. A TypeDouble-forced
	// binding surfaces its float updates as KindDouble.
	forcedType DataType

	// held tracks the command start/end balance: a started command must be
	// ended before it may be started again.
	held bool
}

// pendingReg is one in-flight registration request awaiting its response.
// Responses correlate to requests in FIFO order.
type pendingReg struct {
	name   string
	kind   BindingKind
	since  time.Time
	done   bool
	handle int
}

// registry owns the device's name→handle bindings and the in-flight
// registration queue.
//
// The bindings map is concurrent so resolved bindings can be inspected off
// the poll goroutine; all mutation happens on the engine's goroutine.
type registry struct {
	log      logger.Logger
	bindings *xsync.MapOf[int, *Binding]
	pending  *queue.Queue[*pendingReg]
}

func newRegistry(log logger.Logger) *registry {
	return &registry{
		log:      log,
		bindings: xsync.NewMapOf[int, *Binding](),
		pending:  queue.New[*pendingReg](4),
	}
}

// beginRegistration enqueues an in-flight request for name and returns it.
func (r *registry) beginRegistration(name string, kind BindingKind, now time.Time) *pendingReg {
	p := &pendingReg{
		name:   name,
		kind:   kind,
		since:  now,
		handle: HandleInvalid,
	}
	r.pending.Enqueue(p)

	return p
}

// resolve matches a handle response to the oldest in-flight request.
// The FIFO order is authoritative; the echoed name is checked only to flag a
// desynchronized host. A negative handle means "name not found" and creates
// no binding. resolve returns false for a response with no matching request.
func (r *registry) resolve(kind BindingKind, handle int, name string) bool {
	p, ok := r.pending.Dequeue()
	if !ok {
		r.log.Warn("unsolicited handle response", "kind", kind, "handle", handle, "name", name)
		return false
	}

	if p.kind != kind || (name != "" && p.name != name) {
		r.log.Warn("handle response does not match oldest request",
			"want_kind", p.kind, "want_name", p.name,
			"got_kind", kind, "got_name", name,
		)
	}

	p.done = true
	p.handle = handle
	if handle >= 0 {
		r.bindings.Store(handle, &Binding{
			Name:   p.name,
			Kind:   p.kind,
			Handle: handle,
		})
	}

	return true
}

// lookup returns the binding for handle.
func (r *registry) lookup(handle int) (*Binding, bool) {
	if handle < 0 {
		return nil, false
	}

	return r.bindings.Load(handle)
}

// lookupKind returns the binding for handle if it has the wanted kind.
func (r *registry) lookupKind(handle int, kind BindingKind) (*Binding, error) {
	b, ok := r.lookup(handle)
	if !ok || b.Kind != kind {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHandle, handle)
	}

	return b, nil
}

// holdCommand marks a command as started, enforcing start/end balance.
func (r *registry) holdCommand(handle int) error {
	b, err := r.lookupKind(handle, BindingCommand)
	if err != nil {
		return err
	}
	if b.held {
		return fmt.Errorf("%w: %q", ErrCommandHeld, b.Name)
	}
	b.held = true

	return nil
}

// releaseCommand marks a command as ended.
func (r *registry) releaseCommand(handle int) error {
	b, err := r.lookupKind(handle, BindingCommand)
	if err != nil {
		return err
	}
	if !b.held {
		return fmt.Errorf("%w: %q", ErrCommandNotHeld, b.Name)
	}
	b.held = false

	return nil
}

// clear drops all bindings and in-flight requests. Called on disconnect and
// on full protocol reset.
func (r *registry) clear() {
	r.bindings.Clear()
	r.pending.Reset()
}
