// Package competition runs the two-phase /solve -> /settle cycle for one
// solver: fetch liquidity, dispatch to the solver, encode and merge the
// candidate solutions into settlements, score them, reserve the winner, and
// later hand it to the mempool submitter on /settle.
package competition

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/auctiondriver/driver/pkg/domain/auction"
	"github.com/auctiondriver/driver/pkg/domain/competition/solution"
	"github.com/auctiondriver/driver/pkg/domain/competition/solution/settlement"
	"github.com/auctiondriver/driver/pkg/domain/eth"
	"github.com/auctiondriver/driver/pkg/infra/liquidity"
)

// Solver dispatches one auction round to a solver's HTTP endpoint and
// returns its candidate solutions, already bound to a timeout derived from
// the auction's deadline.
type Solver interface {
	Name() string
	Solve(ctx context.Context, a auction.Auction, liq liquidity.Snapshot) ([]solution.Solution, error)
}

// Mempools submits a settlement for on-chain inclusion. It is fire-and-
// forget from the competition's point of view: /settle returns the
// calldata as soon as submission has been dispatched, not once it lands.
type Mempools interface {
	Execute(ctx context.Context, solver Solver, s settlement.Settlement) error
}

// Observer receives the structured events the competition emits at each
// stage, so the process can log them and/or fan them out over the
// websocket hub without the competition depending on either concern
// directly.
type Observer interface {
	EmptySolution(solver string, id solution.Id)
	Encoding(solver string, id solution.Id)
	EncodingFailed(solver string, id solution.Id, err error)
	Merged(solver string, from, into settlement.Settlement)
	NotMerged(solver string, from, into settlement.Settlement, err error)
	Scoring(solver string, s settlement.Settlement)
	ScoringFailed(solver string, auctionID *auction.Id, err error)
	Score(solver string, s settlement.Settlement, score settlement.Score)
	Revealed(solver string, r Reveal)
	Settled(solver string, s settlement.Settlement)
}

// Competition is the ongoing /solve <-> /settle cycle for one solver. There
// is exactly one Competition per configured solver; the settlement field
// holds at most one reserved Settlement at a time, guarded by mu.
type Competition struct {
	SolverClient Solver
	Blockchain   settlement.Blockchain
	Simulator    settlement.Simulator
	Liquidity    liquidity.Fetcher
	Mempools     Mempools
	Weth         eth.WETHAddress
	Observer     Observer
	// TimeoutBuffer is held back from the auction deadline for the driver's
	// own encoding, merging and scoring work; it defaults to
	// defaultSolverTimeoutBuffer when zero.
	TimeoutBuffer time.Duration

	mu         sync.Mutex
	settlement *settlement.Settlement
}

// defaultSolverTimeoutBuffer is reserved for the driver's own work when a
// Competition isn't configured with an explicit TimeoutBuffer.
const defaultSolverTimeoutBuffer = 2 * time.Second

// nowFunc is overridden in tests that need a fixed clock.
var nowFunc = time.Now

// Reveal is what /solve hands back to the protocol before settlement
// happens: which orders were solved and how the solution scored. The
// calldata itself is only revealed on /settle.
type Reveal struct {
	Score  settlement.Score
	Orders map[auction.Uid]struct{}
}

// Calldata is the settle() call in both forms: the cheaper, internalized
// encoding the submitter actually broadcasts, and the full encoding kept
// around for manual auditing.
type Calldata struct {
	Internalized   []byte
	Uninternalized []byte
}

var (
	// ErrSolutionNotAvailable means /settle was called before /solve
	// returned, or with no reservation currently held.
	ErrSolutionNotAvailable = fmt.Errorf("no solution is available yet")
	// ErrSolutionNotFound means /solve ran to completion but no candidate
	// solution survived encoding, merging and scoring.
	ErrSolutionNotFound = fmt.Errorf("no solution found for the auction")
)

// Solve runs one full round: fetch liquidity, dispatch to the solver,
// encode and merge the resulting solutions into settlements, score them,
// and reserve the winner for a subsequent Settle call.
func (c *Competition) Solve(ctx context.Context, a auction.Auction) (Reveal, error) {
	timeout, err := a.Timeout(nowFunc(), c.solverTimeoutBuffer())
	if err != nil {
		return Reveal{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	snapshot, err := c.Liquidity.Fetch(ctx, relevantPairs(a))
	if err != nil {
		return Reveal{}, fmt.Errorf("competition: fetch liquidity: %w", err)
	}

	solutions, err := c.SolverClient.Solve(ctx, a, snapshot)
	if err != nil {
		return Reveal{}, fmt.Errorf("competition: solve: %w", err)
	}

	var nonEmpty []solution.Solution
	for _, sol := range solutions {
		if sol.IsEmpty() {
			c.observer().EmptySolution(c.SolverClient.Name(), sol.Id())
			continue
		}
		nonEmpty = append(nonEmpty, sol)
	}

	var settlements []settlement.Settlement
	for _, sol := range nonEmpty {
		c.observer().Encoding(c.SolverClient.Name(), sol.Id())
		enc, err := settlement.Encode(ctx, a, sol, c.Blockchain, c.Simulator)
		if err != nil {
			c.observer().EncodingFailed(c.SolverClient.Name(), sol.Id(), err)
			continue
		}
		settlements = append(settlements, enc)
	}

	merged, err := c.mergeAll(ctx, a, settlements)
	if err != nil {
		return Reveal{}, fmt.Errorf("competition: merge: %w", err)
	}

	type scored struct {
		s     settlement.Settlement
		score settlement.Score
	}
	var candidates []scored
	for _, s := range merged {
		c.observer().Scoring(c.SolverClient.Name(), s)
		score := settlement.ScoreOf(s, a.GasPrice)
		candidates = append(candidates, scored{s: s, score: score})
		c.observer().Score(c.SolverClient.Name(), s, score)
	}
	if len(candidates) == 0 {
		return Reveal{}, ErrSolutionNotFound
	}

	// Candidates are in arrival order, so a candidate that merely ties the
	// current best (not just beats it) is the later arrival and replaces it.
	best := candidates[0]
	for _, cand := range candidates[1:] {
		if cand.score.Cmp(best.score) >= 0 {
			best = cand
		}
	}

	c.mu.Lock()
	winner := best.s
	c.settlement = &winner
	c.mu.Unlock()

	reveal := Reveal{Score: best.score, Orders: best.s.Orders()}
	c.observer().Revealed(c.SolverClient.Name(), reveal)
	return reveal, nil
}

// Settle executes the reserved settlement, submitting it to the mempool and
// returning both calldata encodings. The reservation is cleared whether or
// not submission succeeds: a failed submission still consumed the slot, and
// the protocol is expected to call /solve again for the next round.
func (c *Competition) Settle(ctx context.Context) (Calldata, error) {
	c.mu.Lock()
	s := c.settlement
	c.settlement = nil
	c.mu.Unlock()

	if s == nil {
		return Calldata{}, ErrSolutionNotAvailable
	}

	if err := c.Mempools.Execute(ctx, c.SolverClient, *s); err != nil {
		return Calldata{}, fmt.Errorf("competition: submit: %w", err)
	}
	c.observer().Settled(c.SolverClient.Name(), *s)

	internalized, err := settlement.EncodeInternalized(*s)
	if err != nil {
		return Calldata{}, err
	}
	full, err := settlement.EncodeFull(*s)
	if err != nil {
		return Calldata{}, err
	}
	return Calldata{Internalized: internalized, Uninternalized: full}, nil
}

// AuctionID reports the ID of the auction currently reserved for
// settlement, if any.
func (c *Competition) AuctionID() *auction.Id {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settlement == nil {
		return nil
	}
	return c.settlement.AuctionID
}

func (c *Competition) solverTimeoutBuffer() time.Duration {
	if c.TimeoutBuffer > 0 {
		return c.TimeoutBuffer
	}
	return defaultSolverTimeoutBuffer
}

func (c *Competition) observer() Observer {
	if c.Observer != nil {
		return c.Observer
	}
	return noopObserver{}
}

// mergeAll repeatedly tries to fold each settlement into another, in random
// order, until no pair in the pool can merge. See settlement.MergeAll for
// the termination argument; this wrapper just supplies the competition's
// own dependencies and RNG.
func (c *Competition) mergeAll(ctx context.Context, a auction.Auction, settlements []settlement.Settlement) ([]settlement.Settlement, error) {
	if len(settlements) < 2 {
		return settlements, nil
	}
	rng := rand.New(rand.NewSource(rand.Int63()))
	return settlement.MergeAll(ctx, a, settlements, c.Weth, c.Blockchain, c.Simulator, rng)
}

func relevantPairs(a auction.Auction) []liquidity.Pair {
	var pairs []liquidity.Pair
	for _, o := range a.Orders {
		if o.Kind == auction.Liquidity {
			continue
		}
		p, err := liquidity.NewPair(o.Sell.Token, o.Buy.Token)
		if err != nil {
			continue
		}
		pairs = append(pairs, p)
	}
	return liquidity.Dedup(pairs)
}

type noopObserver struct{}

func (noopObserver) EmptySolution(string, solution.Id)                              {}
func (noopObserver) Encoding(string, solution.Id)                                    {}
func (noopObserver) EncodingFailed(string, solution.Id, error)                       {}
func (noopObserver) Merged(string, settlement.Settlement, settlement.Settlement)     {}
func (noopObserver) NotMerged(string, settlement.Settlement, settlement.Settlement, error) {}
func (noopObserver) Scoring(string, settlement.Settlement)                          {}
func (noopObserver) ScoringFailed(string, *auction.Id, error)                       {}
func (noopObserver) Score(string, settlement.Settlement, settlement.Score)          {}
func (noopObserver) Revealed(string, Reveal)                                        {}
func (noopObserver) Settled(string, settlement.Settlement)                          {}
