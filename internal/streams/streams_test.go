package streams

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"futurespipeline/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := New(Config{Addr: mr.Addr(), ConsumerGroup: "test", ConsumerName: "t1"}, slog.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestSignalWriterAndReadSignalsNoAckRoundTrip(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	stream := SignalStreamKey("BTCUSDT", "5m")
	if err := c.EnsureGroup(ctx, []string{stream}); err != nil {
		t.Fatalf("EnsureGroup: %v", err)
	}

	w := NewSignalWriter(c)
	sig := model.Signal{Kind: model.SignalArm, Sym: "BTCUSDT", TF: "5m", Side: model.RegimeLong, Trigger: decimal.NewFromFloat(10.31), Stop: decimal.NewFromFloat(9.79)}
	id, err := w.Write(ctx, sig)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty stream id")
	}

	entries, err := c.ReadSignalsNoAck(ctx, stream, 10, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("ReadSignalsNoAck: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Signal.Sym != "BTCUSDT" || !entries[0].Signal.Trigger.Equal(decimal.NewFromFloat(10.31)) {
		t.Errorf("unexpected decoded signal: %+v", entries[0].Signal)
	}
}

func TestReadSignalsNoAckDropsPoisonMessages(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()
	stream := SignalStreamKey("BTCUSDT", "5m")
	if err := c.EnsureGroup(ctx, []string{stream}); err != nil {
		t.Fatalf("EnsureGroup: %v", err)
	}

	// write a well-formed signal, then a malformed entry directly via miniredis.
	w := NewSignalWriter(c)
	if _, err := w.Write(ctx, model.Signal{Kind: model.SignalArm, Sym: "BTCUSDT", TF: "5m"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := mr.XAdd(stream, "*", []string{"data", "not-json"}); err != nil {
		t.Fatalf("seed poison message: %v", err)
	}

	entries, err := c.ReadSignalsNoAck(ctx, stream, 10, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("ReadSignalsNoAck: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected poison message to be dropped, leaving 1 good entry, got %d", len(entries))
	}

	// a subsequent read should see nothing new: the poison entry was acked,
	// not left to wedge the group.
	more, err := c.ReadSignalsNoAck(ctx, stream, 10, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("ReadSignalsNoAck (2nd): %v", err)
	}
	if len(more) != 0 {
		t.Errorf("expected no further entries, got %d", len(more))
	}
}

func TestTypedConsumerConsumeDecodesCandles(t *testing.T) {
	c, _ := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := CandleStreamKey("BTCUSDT", "5m")
	consumer := NewCandleConsumer(c)
	if err := consumer.EnsureGroup(ctx, []string{stream}); err != nil {
		t.Fatalf("EnsureGroup: %v", err)
	}

	candle := model.Candle{Sym: "BTCUSDT", TF: "5m", Open: decimal.NewFromInt(10), Close: decimal.NewFromInt(11)}
	if _, err := xaddJSON(ctx, c.rdb, stream, 100, candle); err != nil {
		t.Fatalf("seed candle: %v", err)
	}

	out := make(chan model.Candle, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- consumer.Consume(ctx, []string{stream}, out) }()

	select {
	case got := <-out:
		if got.Sym != "BTCUSDT" || !got.Close.Equal(decimal.NewFromInt(11)) {
			t.Errorf("unexpected candle: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for consumed candle")
	}
	cancel()
	<-errCh
}

func TestReplayFromIDReadsOnlyAfterStartID(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	stream := CandleStreamKey("BTCUSDT", "5m")

	firstID, err := xaddJSON(ctx, c.rdb, stream, 100, model.Candle{Sym: "BTCUSDT", TF: "5m", Close: decimal.NewFromInt(1)})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := xaddJSON(ctx, c.rdb, stream, 100, model.Candle{Sym: "BTCUSDT", TF: "5m", Close: decimal.NewFromInt(2)}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	consumer := NewCandleConsumer(c)
	out := make(chan model.Candle, 10)
	lastID, err := consumer.ReplayFromID(ctx, stream, firstID, out)
	if err != nil {
		t.Fatalf("ReplayFromID: %v", err)
	}
	close(out)

	var got []model.Candle
	for c := range out {
		got = append(got, c)
	}
	if len(got) != 1 || !got[0].Close.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected replay to skip firstID and return only the second candle, got %+v", got)
	}
	if lastID == firstID {
		t.Errorf("expected lastID to advance past firstID")
	}
}
