package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Serial adapts a physical serial port to the engine's non-blocking Transport
// contract. The port is opened 8N1 with a near-zero read timeout so the
// engine's poll loop is never held by an idle line.
type Serial struct {
	port serial.Port
	name string
}

// OpenSerial opens the named serial device at the given baud rate. Use
// xplpro.DefaultBaudRate unless the host plugin was rebuilt for another rate.
func OpenSerial(device string, baudRate int) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", device, err)
	}

	if err := port.SetReadTimeout(time.Millisecond); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("transport: set read timeout on %s: %w", device, err)
	}

	return &Serial{port: port, name: device}, nil
}

// Read returns the bytes currently pending on the line, or (0, nil) when the
// read timeout elapses with nothing received.
func (s *Serial) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

// Write puts p on the line, blocking until the driver accepts all of it.
func (s *Serial) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

// Name returns the device path the port was opened with.
func (s *Serial) Name() string {
	return s.name
}

// Close releases the port.
func (s *Serial) Close() error {
	return s.port.Close()
}
