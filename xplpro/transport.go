package xplpro

// Transport is the byte-oriented link the engine runs over, typically a
// serial port.
//
// Read must be non-blocking: when no bytes are pending it returns (0, nil)
// rather than waiting. Write must accept the whole buffer or fail; the engine
// never retries a partial frame write, it treats one as a transport error.
type Transport interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
}
