package amdgpu

import (
	"context"
	"fmt"
	"log/slog"
)

// QueueType identifies the command queue a submission came from.
type QueueType uint8

// Queue types.
const (
	QueueACB QueueType = iota // asynchronous compute
	QueueDCB                  // draw
	QueueCCB                  // constant
)

// String returns the queue mnemonic.
func (q QueueType) String() string {
	switch q {
	case QueueACB:
		return "acb"
	case QueueDCB:
		return "dcb"
	case QueueCCB:
		return "ccb"
	default:
		return "unknown"
	}
}

// SequenceNum locates a packet within the emulated command stream.
type SequenceNum struct {
	Queue           QueueType
	FramesSubmitted uint64
	Seq0            uint32
	Seq1            uint32
}

// String formats the sequence number as "dcb:frame/seq0.seq1".
func (s SequenceNum) String() string {
	return fmt.Sprintf("%s:%d/%d.%d", s.Queue, s.FramesSubmitted, s.Seq0, s.Seq1)
}

// LogValue implements slog.LogValuer.
func (s SequenceNum) LogValue() slog.Value {
	return slog.StringValue(s.String())
}

type seqnumKey struct{}

// WithSequence returns a context carrying the submission sequence number.
func WithSequence(ctx context.Context, seq SequenceNum) context.Context {
	return context.WithValue(ctx, seqnumKey{}, seq)
}

// SequenceFrom returns the sequence number stored in ctx, if any.
func SequenceFrom(ctx context.Context) (SequenceNum, bool) {
	seq, ok := ctx.Value(seqnumKey{}).(SequenceNum)
	return seq, ok
}
