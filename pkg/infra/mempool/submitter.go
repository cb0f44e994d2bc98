package mempool

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/auctiondriver/driver/pkg/domain/competition"
	"github.com/auctiondriver/driver/pkg/domain/competition/solution/settlement"
	"github.com/auctiondriver/driver/pkg/crypto"
)

// Outcome classifies how a submitted settlement was ultimately resolved.
type Outcome int

const (
	Mined Outcome = iota
	Expired
	Reverted
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Mined:
		return "mined"
	case Expired:
		return "expired"
	case Reverted:
		return "reverted"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Endpoint is one broadcast target: a public mempool node, a private order
// flow relay, a builder API, whatever the deployment is configured with.
// Every configured endpoint receives every attempt in parallel; a quorum of
// one acceptance is enough to keep tracking the transaction.
type Endpoint struct {
	Name   string
	Client *ethclient.Client
}

// gasBumpNumerator/Denominator define the fee-bump ladder applied on every
// resubmission attempt: each attempt's fee caps are the previous attempt's
// times numerator/denominator, which must clear 10% to replace a pending
// transaction on most clients.
const (
	gasBumpNumerator   = 115
	gasBumpDenominator = 100
)

// Submitter broadcasts a settlement's transaction to every configured
// endpoint in parallel, then tracks it until it is mined, reverted, or
// MaxAttempts submissions (default 5) have gone unmined, bumping gas and
// resubmitting on a fixed interval in between.
type Submitter struct {
	Signer    *crypto.Signer
	ChainID   *big.Int
	Watcher   *ethclient.Client
	Endpoints []Endpoint
	Store     *Store
	Log       *zap.Logger

	MaxAttempts  int
	PollInterval time.Duration
}

var _ competition.Mempools = (*Submitter)(nil)

// Execute implements competition.Mempools. It signs and broadcasts the
// settlement's transaction to every endpoint, returning once the initial
// broadcast has been accepted by at least one of them; tracking and
// resubmission continue in the background on an independent context so a
// canceled request context doesn't abort an already-dispatched tx.
func (s *Submitter) Execute(ctx context.Context, solver competition.Solver, st settlement.Settlement) error {
	nonce, err := s.Watcher.PendingNonceAt(ctx, s.Signer.Address())
	if err != nil {
		return fmt.Errorf("mempool: read nonce: %w", err)
	}
	tip, feeCap, err := s.suggestFees(ctx)
	if err != nil {
		return fmt.Errorf("mempool: suggest fees: %w", err)
	}

	tx, err := settlement.BuildTransaction(st, s.ChainID, nonce, feeCap, tip)
	if err != nil {
		return fmt.Errorf("mempool: build transaction: %w", err)
	}
	signed, err := s.Signer.SignTx(tx, s.ChainID)
	if err != nil {
		return fmt.Errorf("mempool: sign transaction: %w", err)
	}

	accepted, err := s.broadcast(ctx, signed)
	if err != nil {
		return fmt.Errorf("mempool: broadcast: %w", err)
	}
	if accepted == 0 {
		return fmt.Errorf("mempool: %w: every endpoint rejected the transaction", errRejected)
	}

	record := Record{
		Settlement: settlementHash(st),
		TxHash:     signed.Hash(),
		GasFeeCap:  feeCap.String(),
		Attempt:    1,
	}
	if err := s.Store.Save(record); err != nil {
		s.log().Warn("mempool: failed to persist submission record", zap.Error(err))
	}

	go s.track(detach(ctx), solver.Name(), st, signed)
	return nil
}

var errRejected = fmt.Errorf("rejected")

func (s *Submitter) suggestFees(ctx context.Context) (tip, feeCap *big.Int, err error) {
	tip, err = s.Watcher.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, err
	}
	head, err := s.Watcher.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	baseFee := head.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(0)
	}
	feeCap = new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(2)), tip)
	return tip, feeCap, nil
}

// broadcast sends tx to every endpoint concurrently and reports how many
// accepted it. One endpoint's rejection (a stale relay, a builder that
// doesn't like the access list) never blocks the others.
func (s *Submitter) broadcast(ctx context.Context, tx *types.Transaction) (int, error) {
	if len(s.Endpoints) == 0 {
		return 0, fmt.Errorf("no broadcast endpoints configured")
	}
	results := make([]bool, len(s.Endpoints))
	g, gctx := errgroup.WithContext(ctx)
	for i, ep := range s.Endpoints {
		i, ep := i, ep
		g.Go(func() error {
			if err := ep.Client.SendTransaction(gctx, tx); err != nil {
				s.log().Debug("mempool: endpoint rejected transaction",
					zap.String("endpoint", ep.Name), zap.Error(err))
				return nil
			}
			results[i] = true
			return nil
		})
	}
	_ = g.Wait()
	accepted := 0
	for _, ok := range results {
		if ok {
			accepted++
		}
	}
	return accepted, nil
}

// track polls for inclusion, bumping gas and resubmitting every
// PollInterval until the transaction mines, reverts, or maxAttempts
// submissions have gone unmined, whichever comes first. ctx is the
// detached context from Execute, so no deadline ends it.
func (s *Submitter) track(ctx context.Context, solverName string, st settlement.Settlement, tx *types.Transaction) {
	maxAttempts := s.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	interval := s.PollInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}

	current := tx
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	attempt := 1
	for {
		select {
		case <-ctx.Done():
			s.resolve(st, Expired, ctx.Err())
			return
		case <-ticker.C:
		}

		receipt, err := s.Watcher.TransactionReceipt(ctx, current.Hash())
		if err == nil {
			outcome := Mined
			if receipt.Status == types.ReceiptStatusFailed {
				outcome = Reverted
			}
			s.resolve(st, outcome, nil)
			return
		}
		if err != ethereum.NotFound {
			s.log().Warn("mempool: receipt lookup failed", zap.String("solver", solverName), zap.Error(err))
		}

		if attempt >= maxAttempts {
			s.resolve(st, Expired, fmt.Errorf("mempool: exhausted %d resubmission attempts", maxAttempts))
			return
		}
		attempt++

		bumped, err := s.bump(ctx, st, current, attempt)
		if err != nil {
			s.log().Warn("mempool: resubmission failed", zap.String("solver", solverName), zap.Error(err))
			continue
		}
		current = bumped
		if err := s.Store.Save(Record{
			Settlement: settlementHash(st),
			TxHash:     current.Hash(),
			GasFeeCap:  current.GasFeeCap().String(),
			Attempt:    attempt,
		}); err != nil {
			s.log().Warn("mempool: failed to persist resubmission record", zap.Error(err))
		}
	}
}

func (s *Submitter) bump(ctx context.Context, st settlement.Settlement, prev *types.Transaction, attempt int) (*types.Transaction, error) {
	feeCap := bumpFee(prev.GasFeeCap())
	tip := bumpFee(prev.GasTipCap())
	tx, err := settlement.BuildTransaction(st, s.ChainID, prev.Nonce(), feeCap, tip)
	if err != nil {
		return nil, err
	}
	signed, err := s.Signer.SignTx(tx, s.ChainID)
	if err != nil {
		return nil, err
	}
	if _, err := s.broadcast(ctx, signed); err != nil {
		return nil, err
	}
	return signed, nil
}

func bumpFee(v *big.Int) *big.Int {
	bumped := new(big.Int).Mul(v, big.NewInt(gasBumpNumerator))
	return bumped.Div(bumped, big.NewInt(gasBumpDenominator))
}

func (s *Submitter) resolve(st settlement.Settlement, outcome Outcome, err error) {
	if delErr := s.Store.Delete(settlementHash(st)); delErr != nil {
		s.log().Warn("mempool: failed to clear submission record", zap.Error(delErr))
	}
	fields := []zap.Field{zap.String("outcome", outcome.String())}
	if st.AuctionID != nil {
		fields = append(fields, zap.Uint64("auctionId", uint64(*st.AuctionID)))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	s.log().Info("mempool: settlement resolved", fields...)
}

func (s *Submitter) log() *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return zap.NewNop()
}

func settlementHash(s settlement.Settlement) [32]byte {
	data, err := settlement.EncodeInternalized(s)
	if err != nil {
		return gethcrypto.Keccak256Hash([]byte(s.Solver.Name()))
	}
	return gethcrypto.Keccak256Hash(data)
}

// detach returns a context carrying no deadline or cancellation from
// parent, but preserving nothing else sensitive: tracking must outlive the
// HTTP request that triggered it.
func detach(parent context.Context) context.Context {
	return context.Background()
}
