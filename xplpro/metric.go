package xplpro

import (
	"sync/atomic"
)

// EngineMetrics contains atomic metrics for one protocol engine.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type EngineMetrics struct {
	// FrameSendCount indicates the number of frames written to the transport.
	FrameSendCount atomic.Uint64
	// FrameRecvCount indicates the number of complete frames received.
	FrameRecvCount atomic.Uint64
	// FrameDropCount indicates the number of inbound frames discarded:
	// oversize, receive timeout, unknown command or decode failure.
	FrameDropCount atomic.Uint64

	// BytesSent indicates the number of bytes written to the transport.
	BytesSent atomic.Uint64
	// BytesRecv indicates the number of bytes read from the transport.
	BytesRecv atomic.Uint64

	// DecodeErrCount indicates the number of well-framed packets whose fields
	// failed to decode.
	DecodeErrCount atomic.Uint64
	// RecvTimeoutCount indicates the number of partial frames dropped by the
	// receive timeout.
	RecvTimeoutCount atomic.Uint64

	// RegisterCount indicates the number of names resolved to valid handles.
	RegisterCount atomic.Uint64
	// DisconnectCount indicates the number of session teardowns.
	DisconnectCount atomic.Uint64
}

func (m *EngineMetrics) incFrameSendCount() { m.FrameSendCount.Add(1) }

func (m *EngineMetrics) incFrameRecvCount() { m.FrameRecvCount.Add(1) }

func (m *EngineMetrics) incFrameDropCount() { m.FrameDropCount.Add(1) }

func (m *EngineMetrics) addBytesSent(n int) { m.BytesSent.Add(uint64(n)) }

func (m *EngineMetrics) addBytesRecv(n int) { m.BytesRecv.Add(uint64(n)) }

func (m *EngineMetrics) incDecodeErrCount() { m.DecodeErrCount.Add(1) }

func (m *EngineMetrics) incRecvTimeoutCount() { m.RecvTimeoutCount.Add(1) }

func (m *EngineMetrics) incRegisterCount() { m.RegisterCount.Add(1) }

func (m *EngineMetrics) incDisconnectCount() { m.DisconnectCount.Add(1) }
