package model

import (
	"context"
	"time"
)

// ── Stream port interfaces ──
// These decouple the calculator/poller/reconciler from the concrete Redis
// Streams transport in internal/streams, mirroring the teacher's
// store/redis reader-writer split (internal/store/redis.{Reader,Writer}).

// CandleWriter publishes closed candles onto the per-(sym,tf) candle stream.
type CandleWriter interface {
	// Run reads candles from candleCh and publishes them.
	// Blocks until ctx is cancelled or candleCh is closed.
	Run(ctx context.Context, candleCh <-chan Candle)

	// Close releases underlying resources.
	Close() error
}

// CandleReader reads historical candles from a candle stream.
type CandleReader interface {
	// ReadRange reads candles for one (sym,tf) strictly after afterTS.
	ReadRange(ctx context.Context, sym, tf string, afterTS int64) ([]Candle, error)

	// Close releases underlying resources.
	Close() error
}

// IndicatorWriter publishes IndicatorSnapshot values onto the indicator
// stream and the latest-snapshot hash.
type IndicatorWriter interface {
	// WriteBatch writes multiple snapshots in a single pipelined call.
	WriteBatch(ctx context.Context, snapshots []IndicatorSnapshot) error

	// Close releases underlying resources.
	Close() error
}

// SignalWriter publishes Signal values onto the signal stream (component E
// output, component F input).
type SignalWriter interface {
	// Write publishes a single signal and returns its stream id.
	Write(ctx context.Context, sig Signal) (string, error)

	// Close releases underlying resources.
	Close() error
}

// SnapshotStore reads and writes calculator engine snapshots as raw JSON.
// Using []byte avoids a model→calc→model import cycle, mirroring the
// teacher's indicator.SnapshotEngine/RestoreEngine split.
type SnapshotStore interface {
	// SaveSnapshotJSON persists a JSON-encoded engine snapshot for one
	// (sym,tf) worker.
	SaveSnapshotJSON(ctx context.Context, key string, data []byte) error

	// ReadLatestSnapshotJSON loads the most recent snapshot as raw JSON.
	// Returns nil, nil if no snapshot exists.
	ReadLatestSnapshotJSON(ctx context.Context, key string) ([]byte, error)
}

// StreamConsumer consumes a typed stream via a Redis Streams consumer
// group, generic over the decoded message type T (Candle or Signal).
type StreamConsumer[T any] interface {
	// Consume reads messages via the consumer group.
	// Blocks until ctx is cancelled.
	Consume(ctx context.Context, streams []string, out chan<- T) error

	// RecoverPending processes any unACKed messages from a previous crash.
	RecoverPending(ctx context.Context, streams []string, out chan<- T) error

	// EnsureGroup creates consumer groups on streams; idempotent (tolerates
	// BUSYGROUP, per spec §9 "Consumer-group idempotent creation").
	EnsureGroup(ctx context.Context, streams []string) error

	// ReplayFromID reads all messages from a stream strictly after a given id.
	ReplayFromID(ctx context.Context, stream, startID string, out chan<- T) (string, error)

	// StartPELReclaimer runs periodic reclamation of stale PEL entries via
	// XCLAIM, matching the teacher's stale-consumer recovery loop.
	StartPELReclaimer(ctx context.Context, streams []string, group, consumer string,
		interval time.Duration, minIdleMs int64, outCh chan<- T, onReclaim func(count int))

	// Close releases underlying resources.
	Close() error
}
