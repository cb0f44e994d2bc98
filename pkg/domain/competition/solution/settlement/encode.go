package settlement

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/auctiondriver/driver/pkg/domain/auction"
	"github.com/auctiondriver/driver/pkg/domain/competition/solution"
	"github.com/auctiondriver/driver/pkg/domain/eth"
)

// Encode turns a Solution into a verified, priced Settlement. It runs the
// eight-step pipeline: clearing-price completeness, native-token price
// extension, allowance computation, two-pass access-list discovery, gas
// estimation, internalization verification, the asset-flow check and the
// solver-balance check. Any failure aborts encoding with a typed error so
// the competition can report it back to the solver via the observability
// surface (encoding_failed).
func Encode(ctx context.Context, a auction.Auction, sol solution.Solution, bc Blockchain, sim Simulator) (Settlement, error) {
	// Steps 1+2: completeness and native-token extension are already
	// enforced by solution.New and exposed through ClearingPrices.
	prices := sol.ClearingPrices()

	s := Settlement{
		AuctionID:   a.ID,
		Target:      bc.SettlementContract(),
		Solver:      sol.Solver(),
		SolverScore: sol.Score(),
		Trades:      sol.Trades(),
		Prices:      prices,
	}

	// Step 3: allowance computation. Only the shortfall between what's
	// required and what's already on chain needs a fresh approval, and
	// approvals are always bumped to the max to avoid repeating them.
	approvals, err := computeApprovals(ctx, sol, bc)
	if err != nil {
		return Settlement{}, fmt.Errorf("settlement: compute allowances: %w", err)
	}
	interactions := make([]solution.Interaction, 0, len(approvals)+len(sol.Interactions()))
	interactions = append(interactions, approvals...)
	interactions = append(interactions, sol.Interactions()...)
	s.Interactions = interactions

	// Step 7: asset-flow check runs before any RPC so a hopeless solution
	// never pays for a simulation.
	if err := checkAssetFlow(a, s); err != nil {
		return Settlement{}, err
	}

	// Step 8: solver balance check for any native value the interactions
	// send; cheap, so it also runs before simulating.
	if err := checkSolverBalance(ctx, s, bc); err != nil {
		return Settlement{}, err
	}

	chainID, err := bc.ChainID(ctx)
	if err != nil {
		return Settlement{}, fmt.Errorf("settlement: chain id: %w", err)
	}

	// Step 4: two-pass access-list computation. The settlement contract
	// fails to transfer native token into a smart-contract receiver unless
	// the access list already covers it, so Pass A probes a 1-wei
	// transfer to the receiver for every native-buying user trade with a
	// contract receiver and unions the resulting lists; Pass B then
	// simulates the settlement tx itself with that union pre-installed.
	partial, err := nativeTransferAccessList(ctx, s.Trades, chainID, bc, sim)
	if err != nil {
		return Settlement{}, fmt.Errorf("settlement: access list pass a: %w", err)
	}
	tx2, err := buildTx(s, chainID, 0)
	if err != nil {
		return Settlement{}, fmt.Errorf("settlement: build tx: %w", err)
	}
	accessList, err := sim.AccessList(ctx, tx2, partial)
	if err != nil {
		return Settlement{}, fmt.Errorf("settlement: access list pass b: %w", err)
	}
	s.AccessList = accessList

	// Step 5: gas estimation against the warmed access list.
	gasTx, err := buildTx(s, chainID, 0)
	if err != nil {
		return Settlement{}, fmt.Errorf("settlement: build tx: %w", err)
	}
	gas, err := sim.Gas(ctx, gasTx, accessList)
	if err != nil {
		return Settlement{}, fmt.Errorf("settlement: gas estimate: %w", err)
	}
	s.Gas = gas

	// Step 6: internalization verification. If any interaction is
	// internalized, the uninternalized (full) encoding must still simulate
	// successfully, or the internalized settlement would be masking a
	// revert behind the contract's own buffers.
	if usesInternalization(s.Interactions) {
		full, err := EncodeFull(s)
		if err != nil {
			return Settlement{}, fmt.Errorf("settlement: encode full calldata: %w", err)
		}
		fullTx, err := buildTxWithData(s, chainID, full)
		if err != nil {
			return Settlement{}, fmt.Errorf("settlement: build full tx: %w", err)
		}
		if _, err := sim.Gas(ctx, fullTx, nil); err != nil {
			return Settlement{}, ErrFailingInternalization
		}
	}

	if err := checkNonBufferableTokens(a, s.Interactions); err != nil {
		return Settlement{}, err
	}

	return s, nil
}

func computeApprovals(ctx context.Context, sol solution.Solution, bc Blockchain) ([]solution.Interaction, error) {
	contract := bc.SettlementContract()
	var approvals []solution.Interaction
	for _, req := range sol.Allowances() {
		existingAmount, err := bc.Allowance(ctx, req.Spender.Token, contract, req.Spender.Address)
		if err != nil {
			return nil, fmt.Errorf("read allowance for %s/%s: %w", req.Spender.Token, req.Spender.Address, err)
		}
		existing := eth.Existing{Allowance: eth.Allowance{Spender: req.Spender, Amount: existingAmount}}
		approval, needed := req.Approval(existing)
		if !needed {
			continue
		}
		approval = approval.Max()
		data, err := ApproveCalldata(approval)
		if err != nil {
			return nil, err
		}
		approvals = append(approvals, solution.NewCustomInteraction(
			approval.Spender.Token, big.NewInt(0), data, false, nil, nil, nil,
		))
	}
	return approvals, nil
}

func usesInternalization(interactions []solution.Interaction) bool {
	for _, in := range interactions {
		if in.Internalize() {
			return true
		}
	}
	return false
}

// checkAssetFlow verifies the settlement contract never ends up owing a
// token it cannot cover (§4.5 step 7). Every internalized interaction's
// input must be a buffer-trusted token (NonBufferableTokensUsedError);
// the remaining interactions and the user trades are then summed per
// token, and any token whose net balance is negative is rejected
// (AssetFlowError).
func checkAssetFlow(a auction.Auction, s Settlement) error {
	balances := make(map[eth.Address]*big.Int)
	add := func(token eth.Address, delta *big.Int) {
		cur, ok := balances[token]
		if !ok {
			cur = new(big.Int)
			balances[token] = cur
		}
		cur.Add(cur, delta)
	}

	for _, t := range s.Trades {
		f, ok := t.(solution.Fulfillment)
		if !ok {
			continue
		}
		add(f.Order.Sell.Token, f.Order.Sell.Amount)
		add(f.Order.Buy.Token, new(big.Int).Neg(f.Order.Buy.Amount))
	}

	var nonBufferable []eth.Address
	for _, in := range s.Interactions {
		if in.Internalize() {
			for _, input := range in.Inputs() {
				if !a.Trusted(input.Token) {
					nonBufferable = append(nonBufferable, input.Token)
				}
			}
			continue
		}
		for _, input := range in.Inputs() {
			add(input.Token, new(big.Int).Neg(input.Amount))
		}
		for _, output := range in.Outputs() {
			add(output.Token, output.Amount)
		}
	}
	if len(nonBufferable) > 0 {
		return &NonBufferableTokensUsedError{Tokens: nonBufferable}
	}

	deficits := make(map[eth.Address]*big.Int)
	for token, bal := range balances {
		if bal.Sign() < 0 {
			deficits[token] = bal
		}
	}
	if len(deficits) > 0 {
		return &AssetFlowError{Balances: deficits}
	}
	return nil
}

// checkNonBufferableTokens is the trusted-token check restated for the
// full interaction list after internalization is known to be safe. Encode
// and reencode run checkAssetFlow first, which already rejects the same
// inputs with the same error type, so this is a second pass of that check.
func checkNonBufferableTokens(a auction.Auction, interactions []solution.Interaction) error {
	var untrusted []eth.Address
	for _, in := range interactions {
		if !in.Internalize() {
			continue
		}
		for _, input := range in.Inputs() {
			if !a.Trusted(input.Token) {
				untrusted = append(untrusted, input.Token)
			}
		}
	}
	if len(untrusted) > 0 {
		return &NonBufferableTokensUsedError{Tokens: untrusted}
	}
	return nil
}

func checkSolverBalance(ctx context.Context, s Settlement, bc Blockchain) error {
	total := new(big.Int)
	for _, in := range s.Interactions {
		if c, ok := in.(solution.CustomInteraction); ok && c.SendsValue() {
			total.Add(total, c.Value)
		}
	}
	if total.Sign() == 0 {
		return nil
	}
	balance, err := bc.NativeBalance(ctx, bc.SolverAddress())
	if err != nil {
		return fmt.Errorf("settlement: read solver balance: %w", err)
	}
	if balance.Cmp(total) < 0 {
		return &SolverAccountInsufficientBalanceError{Required: eth.Ether{Wei: total}}
	}
	return nil
}

// nativeTransferAccessList implements Pass A of the two-pass access-list
// computation: it exists solely to work around the settlement contract's
// gas-limited native-value fallback path, not to warm slots in general, so
// it must stay even when a node's own createAccessList support improves.
// For every user trade that buys native token and whose receiver is a
// contract, it simulates a 1-wei transfer to the receiver and unions the
// resulting access lists by (address, storage keys). The probe transaction
// carries no sender, so the node simulates it from its default caller, not
// from the solver's address.
func nativeTransferAccessList(ctx context.Context, trades []solution.Trade, chainID *big.Int, bc Blockchain, sim Simulator) (types.AccessList, error) {
	var union types.AccessList
	for _, t := range solution.UserTrades(trades) {
		if !t.Order.BuysEth() {
			continue
		}
		receiver := t.Order.Receiver
		isContract, err := bc.ReceiverIsContract(ctx, receiver)
		if err != nil {
			return nil, fmt.Errorf("receiver %s is contract: %w", receiver, err)
		}
		if !isContract {
			continue
		}
		probe := types.NewTx(&types.DynamicFeeTx{ChainID: chainID, To: &receiver, Value: big.NewInt(1)})
		list, err := sim.AccessList(ctx, probe, nil)
		if err != nil {
			return nil, fmt.Errorf("probe native transfer to %s: %w", receiver, err)
		}
		union = unionAccessList(union, list)
	}
	return union, nil
}

// unionAccessList merges access lists by address, unioning the storage
// keys touched under each, and returns them in a deterministic
// lexicographic order so re-running the same inputs always yields the
// same list.
func unionAccessList(lists ...types.AccessList) types.AccessList {
	keysByAddr := make(map[eth.Address]map[common.Hash]struct{})
	var addrs []eth.Address
	for _, list := range lists {
		for _, tuple := range list {
			keys, ok := keysByAddr[tuple.Address]
			if !ok {
				keys = make(map[common.Hash]struct{})
				keysByAddr[tuple.Address] = keys
				addrs = append(addrs, tuple.Address)
			}
			for _, k := range tuple.StorageKeys {
				keys[k] = struct{}{}
			}
		}
	}
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i][:], addrs[j][:]) < 0 })

	out := make(types.AccessList, 0, len(addrs))
	for _, addr := range addrs {
		keysMap := keysByAddr[addr]
		keys := make([]common.Hash, 0, len(keysMap))
		for k := range keysMap {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i][:], keys[j][:]) < 0 })
		out = append(out, types.AccessTuple{Address: addr, StorageKeys: keys})
	}
	return out
}

func buildTx(s Settlement, chainID *big.Int, value int64) (*types.Transaction, error) {
	data, err := EncodeInternalized(s)
	if err != nil {
		return nil, err
	}
	return buildTxWithData(s, chainID, data)
}

func buildTxWithData(s Settlement, chainID *big.Int, data []byte) (*types.Transaction, error) {
	to := s.Target
	return types.NewTx(&types.DynamicFeeTx{
		ChainID: chainID,
		To:      &to,
		Data:    data,
		Value:   big.NewInt(0),
	}), nil
}

// BuildTransaction assembles the final, broadcast-ready transaction for an
// already-encoded Settlement: the internalized calldata, the access list
// and gas limit computed at encoding time, and the nonce/fee-market
// parameters the mempool submitter decides at broadcast time (encoding
// never touches nonces or gas price: those are a function of when the tx
// is sent, not what it does).
func BuildTransaction(s Settlement, chainID *big.Int, nonce uint64, gasFeeCap, gasTipCap *big.Int) (*types.Transaction, error) {
	data, err := EncodeInternalized(s)
	if err != nil {
		return nil, err
	}
	to := s.Target
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:    chainID,
		Nonce:      nonce,
		To:         &to,
		Data:       data,
		Value:      big.NewInt(0),
		Gas:        s.Gas,
		GasFeeCap:  gasFeeCap,
		GasTipCap:  gasTipCap,
		AccessList: s.AccessList,
	}), nil
}
