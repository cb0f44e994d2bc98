// Package observe turns the competition's stage-by-stage events into
// structured log lines and, optionally, persisted audit rows: the same
// empty_solution/encoding/encoding_failed/merged/not_merged/scoring/
// scoring_failed/score/revealed/settled events named in the driver's
// observability surface.
package observe

import (
	"math/big"

	"go.uber.org/zap"

	"github.com/auctiondriver/driver/pkg/domain/auction"
	"github.com/auctiondriver/driver/pkg/domain/competition"
	"github.com/auctiondriver/driver/pkg/domain/competition/solution"
	"github.com/auctiondriver/driver/pkg/domain/competition/solution/settlement"
)

// Broadcaster fans an event out to any connected observability clients
// (the api package's websocket hub). It is optional: Logger works with a
// nil Broadcaster, it just won't push anything over the wire.
type Broadcaster interface {
	BroadcastToChannel(channel string, data interface{})
}

// Logger implements competition.Observer by writing one structured zap
// line per event and, if a Sink is configured, persisting settlement
// outcomes for later audit.
type Logger struct {
	log         *zap.Logger
	broadcaster Broadcaster
	sink        Sink
}

// New builds a Logger. broadcaster and sink may both be nil.
func New(log *zap.Logger, broadcaster Broadcaster, sink Sink) *Logger {
	return &Logger{log: log, broadcaster: broadcaster, sink: sink}
}

func (l *Logger) broadcast(eventType string, data interface{}) {
	if l.broadcaster == nil {
		return
	}
	l.broadcaster.BroadcastToChannel("events", map[string]interface{}{"type": eventType, "data": data})
}

func (l *Logger) EmptySolution(solver string, id solution.Id) {
	l.log.Info("empty_solution", zap.String("solver", solver), zap.Uint64("solution_id", uint64(id)))
	l.broadcast("empty_solution", map[string]interface{}{"solver": solver, "solutionId": uint64(id)})
}

func (l *Logger) Encoding(solver string, id solution.Id) {
	l.log.Debug("encoding", zap.String("solver", solver), zap.Uint64("solution_id", uint64(id)))
}

func (l *Logger) EncodingFailed(solver string, id solution.Id, err error) {
	l.log.Warn("encoding_failed", zap.String("solver", solver), zap.Uint64("solution_id", uint64(id)), zap.Error(err))
	l.broadcast("encoding_failed", map[string]interface{}{"solver": solver, "solutionId": uint64(id), "reason": err.Error()})
}

func (l *Logger) Merged(solver string, from, into settlement.Settlement) {
	l.log.Debug("merged", zap.String("solver", solver), zap.Int("from_orders", len(from.Orders())), zap.Int("into_orders", len(into.Orders())))
}

func (l *Logger) NotMerged(solver string, from, into settlement.Settlement, err error) {
	l.log.Debug("not_merged", zap.String("solver", solver), zap.Error(err))
}

func (l *Logger) Scoring(solver string, s settlement.Settlement) {
	l.log.Debug("scoring", zap.String("solver", solver), zap.Int("orders", len(s.Orders())), zap.Uint64("gas", s.Gas))
}

func (l *Logger) ScoringFailed(solver string, auctionID *auction.Id, err error) {
	l.log.Warn("scoring_failed", zap.String("solver", solver), zap.Error(err))
}

func (l *Logger) Score(solver string, s settlement.Settlement, score settlement.Score) {
	l.log.Info("score", zap.String("solver", solver), zap.String("score", scoreString(score)), zap.Int("orders", len(s.Orders())))
}

func (l *Logger) Revealed(solver string, r competition.Reveal) {
	orders := make([]string, 0, len(r.Orders))
	for uid := range r.Orders {
		orders = append(orders, uid.String())
	}
	l.log.Info("revealed", zap.String("solver", solver), zap.String("score", scoreString(r.Score)), zap.Strings("orders", orders))
	l.broadcast("revealed", map[string]interface{}{"solver": solver, "score": scoreString(r.Score), "orders": orders})
}

func (l *Logger) Settled(solver string, s settlement.Settlement) {
	l.log.Info("settled", zap.String("solver", solver), zap.Int("orders", len(s.Orders())), zap.Uint64("gas", s.Gas))
	l.broadcast("settled", map[string]interface{}{"solver": solver, "orders": len(s.Orders()), "gas": s.Gas})
	if l.sink != nil {
		if err := l.sink.RecordSettlement(s); err != nil {
			l.log.Warn("audit sink write failed", zap.Error(err))
		}
	}
}

func scoreString(s settlement.Score) string {
	if s.Value == nil {
		return big.NewInt(0).String()
	}
	return s.Value.String()
}
