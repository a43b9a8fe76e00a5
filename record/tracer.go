package record

import "github.com/sarchlab/llcsim/llc"

// A BusTracer wraps a BusConnector and records everything that passes
// through it.
type BusTracer struct {
	inner    llc.BusConnector
	recorder *Recorder
}

// TraceBus wraps a bus connector with recording.
func TraceBus(inner llc.BusConnector, recorder *Recorder) *BusTracer {
	return &BusTracer{inner: inner, recorder: recorder}
}

// BusOperation records the operation, then forwards it.
func (t *BusTracer) BusOperation(op llc.BusOp, addr uint64) {
	t.recorder.RecordBusOp(op, addr)
	t.inner.BusOperation(op, addr)
}

// PutSnoopResult records the response, then forwards it.
func (t *BusTracer) PutSnoopResult(addr uint64, result llc.SnoopResult) {
	t.recorder.RecordSnoopResult(addr, result)
	t.inner.PutSnoopResult(addr, result)
}

// An L1Tracer wraps an L1Messenger and records every message sent through
// it.
type L1Tracer struct {
	inner    llc.L1Messenger
	recorder *Recorder
}

// TraceL1 wraps an L1 messenger with recording.
func TraceL1(inner llc.L1Messenger, recorder *Recorder) *L1Tracer {
	return &L1Tracer{inner: inner, recorder: recorder}
}

// MessageToCache records the message, then forwards it.
func (t *L1Tracer) MessageToCache(msg llc.L1Message, addr uint64) {
	t.recorder.RecordMessage(msg, addr)
	t.inner.MessageToCache(msg, addr)
}
