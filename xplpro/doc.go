// Package xplpro implements the device side of the XPLPro serial link protocol
// used to exchange datarefs and commands with the X-Plane flight simulator's
// XPLPro plugin.
//
// The protocol is a bidirectional, framed, text-numeric command/telemetry
// exchange over a byte-oriented transport (typically a 115200 baud serial
// port). The host plugin exposes named simulator values ("datarefs") and
// invokable actions ("commands"); the device registers the names it cares
// about, receives small integer handles in response, then reads and writes
// values by handle.
//
// # Frames
//
// Every message is one frame:
//
//	'[' command [',' field]... ']'
//
// where command is a single ASCII byte and fields are comma-separated text.
// Frames are bounded by a configurable maximum length (default 200 bytes) and
// a 500 ms receive timeout; a partial or oversize frame is discarded whole and
// the parser resynchronizes on the next start delimiter.
//
// # Session
//
// A session is established by a handshake driven by the host:
//
//  1. The host sends a name inquiry; the device replies with its name and
//     build identifier.
//  2. The host sends a ready signal once the simulator has finished loading.
//     This may take a long time, so it is gated by a 90 s response timeout
//     rather than the 500 ms frame timeout.
//  3. The engine invokes the application's OnReady callback, which registers
//     dataref and command names. Each registration resolves to a handle, or
//     to HandleInvalid (-1) if the host does not know the name.
//  4. The session is active until the host announces shutdown, a response
//     timeout expires, or the application requests a reset.
//
// # Concurrency
//
// The engine is single-threaded and cooperative: the application must call
// [Engine.Step] repeatedly from its poll loop. Step never blocks; it drains
// available transport bytes, dispatches complete frames, evaluates timeouts
// and flushes gated outbound frames. All engine state is owned by the engine
// instance and mutated only during a Step (or during registration calls made
// from within the OnReady callback). Calling Step re-entrantly from a
// callback is not allowed.
package xplpro
