package xplpro

import (
	"strings"
	"time"
)

// deframer accumulates transport bytes into delimited frames.
//
// A frame on the wire is '[' command [',' field]... ']'. The deframer returns
// the bytes between the delimiters: command code first, then the separator-
// joined fields. Bytes seen while no frame is open are discarded. A frame that
// grows past maxSize, or that stalls longer than timeout after its start
// delimiter, is discarded whole; the scanner then resynchronizes on the next
// start delimiter.
type deframer struct {
	buf      []byte
	maxSize  int
	timeout  time.Duration
	open     bool
	overflow bool
	started  time.Time

	// drops counts frames discarded for overflow or timeout.
	drops uint64
}

func newDeframer(maxSize int, timeout time.Duration) *deframer {
	return &deframer{
		buf:     make([]byte, 0, maxSize),
		maxSize: maxSize,
		timeout: timeout,
	}
}

// feed consumes one transport byte. It returns a complete frame payload and
// true when the byte closes an open frame; otherwise it returns nil and false.
// The returned slice is a copy and remains valid after further feeding.
func (d *deframer) feed(b byte, now time.Time) ([]byte, bool) {
	if d.open && now.Sub(d.started) > d.timeout {
		// The open frame stalled; treat the line as desynchronized.
		d.drops++
		d.reset()
	}

	switch {
	case b == frameStart:
		if d.open {
			// A new start inside an open frame abandons the stale one.
			d.drops++
		}
		d.reset()
		d.open = true
		d.started = now

	case !d.open:
		// Line noise between frames.

	case b == frameEnd:
		if d.overflow || len(d.buf) == 0 {
			d.drops++
			d.reset()
			return nil, false
		}
		frame := make([]byte, len(d.buf))
		copy(frame, d.buf)
		d.reset()

		return frame, true

	default:
		if d.overflow {
			return nil, false
		}
		if len(d.buf) >= d.maxSize {
			// Discard the rest of this frame but keep scanning it so the
			// trailing delimiter does not leak into the next frame.
			d.overflow = true
			return nil, false
		}
		d.buf = append(d.buf, b)
	}

	return nil, false
}

// expire drops an open frame whose receive timeout has elapsed.
// It returns true if a partial frame was discarded.
func (d *deframer) expire(now time.Time) bool {
	if !d.open || now.Sub(d.started) <= d.timeout {
		return false
	}
	d.drops++
	d.reset()

	return true
}

// pending returns the number of buffered bytes of the frame in progress.
func (d *deframer) pending() int {
	return len(d.buf)
}

func (d *deframer) reset() {
	d.buf = d.buf[:0]
	d.open = false
	d.overflow = false
}

// buildFrame serializes one complete frame: the command code and the
// separator-joined fields wrapped in the frame delimiters. The result is
// always transmitted atomically; the flow gate delays whole frames only.
func buildFrame(cmd byte, fields ...string) []byte {
	size := 3 // start, command, end
	for _, f := range fields {
		size += 1 + len(f)
	}

	frame := make([]byte, 0, size)
	frame = append(frame, frameStart, cmd)
	for _, f := range fields {
		frame = append(frame, fieldSep)
		frame = append(frame, f...)
	}
	frame = append(frame, frameEnd)

	return frame
}

// splitPayload separates a deframed payload into command code and its raw
// field string (without the leading separator). ok is false for an empty
// payload.
func splitPayload(frame []byte) (cmd byte, fields string, ok bool) {
	if len(frame) == 0 {
		return 0, "", false
	}
	cmd = frame[0]
	if len(frame) >= 2 && frame[1] == fieldSep {
		fields = string(frame[2:])
	}

	return cmd, fields, true
}

// sanitizeText replaces frame delimiter bytes in outbound free-form text
// (debug and speech messages). The wire format has no escaping, so a delimiter
// inside a text field would corrupt the frame for the host parser. Field
// separators are left alone: free-form text is always the final field and the
// host consumes the remainder of the frame.
func sanitizeText(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case frameStart, frameEnd:
			return ' '
		default:
			return r
		}
	}, s)
}
