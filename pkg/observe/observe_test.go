package observe

import (
	"math/big"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/auctiondriver/driver/pkg/domain/auction"
	"github.com/auctiondriver/driver/pkg/domain/competition"
	"github.com/auctiondriver/driver/pkg/domain/competition/solution/settlement"
)

type recordingBroadcaster struct {
	channel string
	events  []interface{}
}

func (r *recordingBroadcaster) BroadcastToChannel(channel string, data interface{}) {
	r.channel = channel
	r.events = append(r.events, data)
}

func TestLoggerBroadcastsRevealed(t *testing.T) {
	b := &recordingBroadcaster{}
	l := New(zaptest.NewLogger(t), b, nil)

	reveal := competition.Reveal{
		Score:  settlement.Score{Value: big.NewInt(42)},
		Orders: map[auction.Uid]struct{}{{1}: {}},
	}
	l.Revealed("solver-a", reveal)

	if len(b.events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(b.events))
	}
	if b.channel != "events" {
		t.Errorf("channel = %q, want events", b.channel)
	}
	payload, ok := b.events[0].(map[string]interface{})
	if !ok {
		t.Fatalf("event payload = %T, want map[string]interface{}", b.events[0])
	}
	if payload["solver"] != "solver-a" {
		t.Errorf("payload[solver] = %v, want solver-a", payload["solver"])
	}
	if payload["score"] != "42" {
		t.Errorf("payload[score] = %v, want \"42\"", payload["score"])
	}
}

func TestLoggerToleratesNilBroadcasterAndSink(t *testing.T) {
	l := New(zaptest.NewLogger(t), nil, nil)
	// Must not panic with no broadcaster or sink configured.
	l.EmptySolution("solver-a", 1)
	l.Settled("solver-a", settlement.Settlement{})
}

type recordingSink struct {
	settlements []settlement.Settlement
}

func (r *recordingSink) RecordSettlement(s settlement.Settlement) error {
	r.settlements = append(r.settlements, s)
	return nil
}

func TestLoggerSettledWritesToSink(t *testing.T) {
	sink := &recordingSink{}
	l := New(zaptest.NewLogger(t), nil, sink)

	l.Settled("solver-a", settlement.Settlement{Gas: 12345})

	if len(sink.settlements) != 1 {
		t.Fatalf("len(sink.settlements) = %d, want 1", len(sink.settlements))
	}
	if sink.settlements[0].Gas != 12345 {
		t.Errorf("recorded gas = %d, want 12345", sink.settlements[0].Gas)
	}
}
