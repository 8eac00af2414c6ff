// Package transport provides byte transports for the XPLPro protocol engine:
// a physical serial port and an in-memory pipe pair for tests and examples.
//
// Both satisfy the engine's Transport contract: reads never block (a read
// with nothing pending returns 0, nil) and writes accept whole buffers.
package transport
