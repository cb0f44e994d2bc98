package solver

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/auctiondriver/driver/pkg/domain/auction"
	"github.com/auctiondriver/driver/pkg/domain/competition/solution"
	"github.com/auctiondriver/driver/pkg/domain/eth"
	"github.com/auctiondriver/driver/pkg/infra/liquidity"
)

type auctionDTO struct {
	Id       *uint64               `json:"id,omitempty"`
	Deadline string                `json:"deadline"`
	GasPrice string                `json:"gasPrice"`
	Tokens   map[string]tokenDTO   `json:"tokens"`
	Orders   []orderDTO            `json:"orders"`
}

type tokenDTO struct {
	Decimals         uint8  `json:"decimals"`
	Symbol           string `json:"symbol"`
	ReferencePrice   string `json:"referencePrice,omitempty"`
	AvailableBalance string `json:"availableBalance"`
	Trusted          bool   `json:"trusted"`
}

type orderDTO struct {
	UID        string `json:"uid"`
	SellToken  string `json:"sellToken"`
	SellAmount string `json:"sellAmount"`
	BuyToken   string `json:"buyToken"`
	BuyAmount  string `json:"buyAmount"`
	FeeToken   string `json:"feeToken"`
	FeeAmount  string `json:"feeAmount"`
	Side       string `json:"side"`
	Kind       string `json:"kind"`
	Partial    bool   `json:"partiallyFillable"`
	ValidTo    uint32 `json:"validTo"`
	Receiver   string `json:"receiver"`
}

type liquidityDTO struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Token0 string `json:"token0"`
	Token1 string `json:"token1"`
	Router string `json:"router"`
}

type solutionDTO struct {
	Id           uint64             `json:"id"`
	Trades       []tradeDTO         `json:"trades"`
	Prices       map[string]string  `json:"prices"`
	Interactions []interactionDTO   `json:"interactions"`
	Score        scoreDTO           `json:"score"`
}

type tradeDTO struct {
	Kind       string `json:"kind"` // "fulfillment" | "jit"
	UID        string `json:"uid"`
	Executed   string `json:"executed"`
	SurplusFee string `json:"surplusFee,omitempty"`
	// Jit-only fields: a synthetic order the solver invented this round.
	JitOrder *orderDTO `json:"jitOrder,omitempty"`
}

type interactionDTO struct {
	Kind        string `json:"kind"` // "liquidity" | "custom"
	Internalize bool   `json:"internalize"`
	// liquidity
	Pool     string `json:"pool,omitempty"`
	Router   string `json:"router,omitempty"`
	Calldata string `json:"calldata,omitempty"`
	// both
	InputToken   string `json:"inputToken,omitempty"`
	InputAmount  string `json:"inputAmount,omitempty"`
	OutputToken  string `json:"outputToken,omitempty"`
	OutputAmount string `json:"outputAmount,omitempty"`
	// custom
	Target string `json:"target,omitempty"`
	Value  string `json:"value,omitempty"`
}

type scoreDTO struct {
	Kind               string  `json:"kind"` // "solver" | "riskAdjusted"
	Value              string  `json:"value,omitempty"`
	SuccessProbability float64 `json:"successProbability,omitempty"`
}

func toAuctionDTO(a auction.Auction) auctionDTO {
	var id *uint64
	if a.ID != nil {
		v := uint64(*a.ID)
		id = &v
	}
	tokens := make(map[string]tokenDTO, len(a.Tokens))
	for addr, info := range a.Tokens {
		dto := tokenDTO{
			Decimals:         info.Decimals,
			Symbol:           info.Symbol,
			AvailableBalance: bigString(info.AvailableBalance),
			Trusted:          info.Trusted,
		}
		if info.ReferencePrice != nil {
			dto.ReferencePrice = info.ReferencePrice.String()
		}
		tokens[addr.Hex()] = dto
	}
	orders := make([]orderDTO, 0, len(a.Orders))
	for _, o := range a.Orders {
		orders = append(orders, orderDTO{
			UID:        o.UID.String(),
			SellToken:  o.Sell.Token.Hex(),
			SellAmount: bigString(o.Sell.Amount),
			BuyToken:   o.Buy.Token.Hex(),
			BuyAmount:  bigString(o.Buy.Amount),
			FeeToken:   o.Fee.Token.Hex(),
			FeeAmount:  bigString(o.Fee.Amount),
			Side:       sideString(o.Side),
			Kind:       kindString(o.Kind),
			Partial:    o.Partial,
			ValidTo:    o.ValidTo,
			Receiver:   o.Receiver.Hex(),
		})
	}
	return auctionDTO{
		Id:       id,
		Deadline: a.Deadline.Format("2006-01-02T15:04:05Z07:00"),
		GasPrice: bigString(a.GasPrice),
		Tokens:   tokens,
		Orders:   orders,
	}
}

func toLiquidityDTOs(snap liquidity.Snapshot) []liquidityDTO {
	out := make([]liquidityDTO, 0, len(snap.Pools))
	for _, p := range snap.Pools {
		pair := p.Pair()
		out = append(out, liquidityDTO{
			ID:     string(p.ID()),
			Kind:   liquidityKindString(p.Kind()),
			Token0: pair.Token0.Hex(),
			Token1: pair.Token1.Hex(),
			Router: p.Router().Hex(),
		})
	}
	return out
}

func bigString(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}

func sideString(s auction.Side) string {
	if s == auction.Buy {
		return "buy"
	}
	return "sell"
}

func kindString(k auction.Kind) string {
	switch k {
	case auction.Limit:
		return "limit"
	case auction.Liquidity:
		return "liquidity"
	default:
		return "market"
	}
}

func liquidityKindString(k liquidity.Kind) string {
	switch k {
	case liquidity.WeightedProduct:
		return "weighted"
	case liquidity.Stable:
		return "stable"
	case liquidity.LimitOrder:
		return "limitOrder"
	default:
		return "constantProduct"
	}
}

func parseBigInt(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal amount %q", s)
	}
	return n, nil
}

func parseHexBytes(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

func parseUid(s string) (auction.Uid, error) {
	var uid auction.Uid
	b, err := parseHexBytes(s)
	if err != nil {
		return uid, err
	}
	if len(b) != len(uid) {
		return uid, fmt.Errorf("uid must be %d bytes, got %d", len(uid), len(b))
	}
	copy(uid[:], b)
	return uid, nil
}

// fromSolutionDTO converts a solver's reported solution into the domain
// type the competition operates on. It only has enough information about
// each order to reconstruct a Trade, not the full protocol Order: the
// driver is expected to already know the order (it sent it in the
// request), so fulfillments here only carry what's needed downstream
// (UID, executed amount, fee) plus the order fields needed to validate and
// encode it, mirrored back by a well-behaved solver.
func fromSolutionDTO(dto solutionDTO, c *Client) (solution.Solution, error) {
	prices := make(map[eth.Address]*big.Int, len(dto.Prices))
	for addr, amount := range dto.Prices {
		n, err := parseBigInt(amount)
		if err != nil {
			return solution.Solution{}, fmt.Errorf("price %s: %w", addr, err)
		}
		prices[common.HexToAddress(addr)] = n
	}

	trades := make([]solution.Trade, 0, len(dto.Trades))
	for i, t := range dto.Trades {
		trade, err := fromTradeDTO(t)
		if err != nil {
			return solution.Solution{}, fmt.Errorf("trade[%d]: %w", i, err)
		}
		trades = append(trades, trade)
	}

	interactions := make([]solution.Interaction, 0, len(dto.Interactions))
	for i, in := range dto.Interactions {
		interaction, err := fromInteractionDTO(in)
		if err != nil {
			return solution.Solution{}, fmt.Errorf("interaction[%d]: %w", i, err)
		}
		interactions = append(interactions, interaction)
	}

	score, err := fromScoreDTO(dto.Score)
	if err != nil {
		return solution.Solution{}, err
	}

	return solution.New(solution.Id(dto.Id), trades, prices, interactions, c, score, eth.WETHAddress{})
}

func fromTradeDTO(t tradeDTO) (solution.Trade, error) {
	uid, err := parseUid(t.UID)
	if err != nil {
		return nil, err
	}
	executed, err := parseBigInt(t.Executed)
	if err != nil {
		return nil, fmt.Errorf("executed: %w", err)
	}

	if t.Kind == "jit" {
		if t.JitOrder == nil {
			return nil, fmt.Errorf("jit trade missing jitOrder")
		}
		order, err := orderFromJitDTO(*t.JitOrder, uid)
		if err != nil {
			return nil, err
		}
		return solution.Jit{Order: order, Executed: executed}, nil
	}

	var fee solution.FeeKind = solution.ProtocolFee{}
	if t.SurplusFee != "" {
		amount, err := parseBigInt(t.SurplusFee)
		if err != nil {
			return nil, fmt.Errorf("surplusFee: %w", err)
		}
		fee = solution.SurplusFee{Amount: amount}
	}
	// The order itself is looked up by UID from the auction the driver
	// already holds; callers that need the full Order (encoding, scoring)
	// do so via the auction, not this DTO. Here we only need a minimal
	// Fulfillment shell carrying the UID so downstream code can join back
	// to the real order.
	return solution.Fulfillment{
		Order:    auction.Order{UID: uid},
		Executed: executed,
		Fee:      fee,
	}, nil
}

func orderFromJitDTO(dto orderDTO, uid auction.Uid) (auction.Order, error) {
	sellAmount, err := parseBigInt(dto.SellAmount)
	if err != nil {
		return auction.Order{}, fmt.Errorf("sellAmount: %w", err)
	}
	buyAmount, err := parseBigInt(dto.BuyAmount)
	if err != nil {
		return auction.Order{}, fmt.Errorf("buyAmount: %w", err)
	}
	feeAmount, err := parseBigInt(dto.FeeAmount)
	if err != nil {
		return auction.Order{}, fmt.Errorf("feeAmount: %w", err)
	}
	return auction.Order{
		UID:      uid,
		Sell:     eth.Asset{Token: common.HexToAddress(dto.SellToken), Amount: sellAmount},
		Buy:      eth.Asset{Token: common.HexToAddress(dto.BuyToken), Amount: buyAmount},
		Fee:      eth.Asset{Token: common.HexToAddress(dto.FeeToken), Amount: feeAmount},
		Kind:     auction.Liquidity,
		Partial:  dto.Partial,
		ValidTo:  dto.ValidTo,
		Receiver: common.HexToAddress(dto.Receiver),
	}, nil
}

func fromInteractionDTO(dto interactionDTO) (solution.Interaction, error) {
	input, err := assetFrom(dto.InputToken, dto.InputAmount)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	output, err := assetFrom(dto.OutputToken, dto.OutputAmount)
	if err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}
	calldata, err := parseHexBytes(dto.Calldata)
	if err != nil {
		return nil, fmt.Errorf("calldata: %w", err)
	}

	switch dto.Kind {
	case "liquidity":
		return solution.NewLiquidityInteraction(
			liquidity.ID(dto.Pool),
			common.HexToAddress(dto.Router),
			calldata,
			input, output, dto.Internalize,
		), nil
	case "custom":
		value, err := parseBigInt(dto.Value)
		if err != nil {
			return nil, fmt.Errorf("value: %w", err)
		}
		allowances := []eth.Required{{Allowance: eth.Allowance{
			Spender: eth.Spender{Token: input.Token, Address: common.HexToAddress(dto.Target)},
			Amount:  input.Amount,
		}}}
		return solution.NewCustomInteraction(
			common.HexToAddress(dto.Target), value, calldata, dto.Internalize,
			[]eth.Asset{input}, []eth.Asset{output}, allowances,
		), nil
	default:
		return nil, fmt.Errorf("unknown interaction kind %q", dto.Kind)
	}
}

func assetFrom(token, amount string) (eth.Asset, error) {
	n, err := parseBigInt(amount)
	if err != nil {
		return eth.Asset{}, err
	}
	return eth.Asset{Token: common.HexToAddress(token), Amount: n}, nil
}

func fromScoreDTO(dto scoreDTO) (solution.Score, error) {
	switch dto.Kind {
	case "riskAdjusted":
		return solution.RiskAdjustedScore{SuccessProbability: dto.SuccessProbability}, nil
	case "solver", "":
		value, err := parseBigInt(dto.Value)
		if err != nil {
			return nil, fmt.Errorf("score value: %w", err)
		}
		return solution.SolverScore{Value: value}, nil
	default:
		return nil, fmt.Errorf("unknown score kind %q", dto.Kind)
	}
}
