package liquidity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/auctiondriver/driver/pkg/domain/eth"
)

// HTTPFetcher queries an indexer/subgraph-style liquidity service for the
// pools relevant to a set of token pairs. It is the only Fetcher
// implementation shipped here; a deployment that sources liquidity
// on-chain instead plugs in its own.
type HTTPFetcher struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPFetcher builds a fetcher bound to a liquidity service endpoint.
func NewHTTPFetcher(endpoint string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{endpoint: endpoint, httpClient: &http.Client{Timeout: timeout}}
}

type fetchRequest struct {
	Pairs []pairDTO `json:"pairs"`
}

type pairDTO struct {
	Token0 string `json:"token0"`
	Token1 string `json:"token1"`
}

type fetchResponse struct {
	Pools []poolDTO `json:"pools"`
}

type poolDTO struct {
	ID       string            `json:"id"`
	Kind     string            `json:"kind"`
	Router   string            `json:"router"`
	Tokens   []string          `json:"tokens"`
	Reserves []string          `json:"reserves"`
	Weights  map[string]string `json:"weights"`
	FeeBps   uint32            `json:"feeBps"`
	Amplifier string           `json:"amplifier"`
	// ForeignLimitOrder-only fields.
	MakerToken  string `json:"makerToken"`
	MakerAmount string `json:"makerAmount"`
	TakerToken  string `json:"takerToken"`
	TakerAmount string `json:"takerAmount"`
}

// Fetch implements Fetcher by POSTing the relevant pairs and decoding
// whatever pools the liquidity service returns into the package's concrete
// Pool types.
func (f *HTTPFetcher) Fetch(ctx context.Context, pairs []Pair) (Snapshot, error) {
	if len(pairs) == 0 {
		return Snapshot{}, nil
	}

	reqPairs := make([]pairDTO, 0, len(pairs))
	for _, p := range pairs {
		reqPairs = append(reqPairs, pairDTO{Token0: p.Token0.Hex(), Token1: p.Token1.Hex()})
	}
	body, err := json.Marshal(fetchRequest{Pairs: reqPairs})
	if err != nil {
		return Snapshot{}, fmt.Errorf("liquidity: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(body))
	if err != nil {
		return Snapshot{}, fmt.Errorf("liquidity: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("liquidity: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, fmt.Errorf("liquidity: service responded %d", resp.StatusCode)
	}

	var out fetchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Snapshot{}, fmt.Errorf("liquidity: decode response: %w", err)
	}

	pools := make([]Pool, 0, len(out.Pools))
	for i, dto := range out.Pools {
		pool, err := fromPoolDTO(dto)
		if err != nil {
			return Snapshot{}, fmt.Errorf("liquidity: pool[%d]: %w", i, err)
		}
		pools = append(pools, pool)
	}
	return Snapshot{Pools: pools}, nil
}

func fromPoolDTO(dto poolDTO) (Pool, error) {
	router, err := hexAddr(dto.Router)
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}

	switch dto.Kind {
	case "weighted":
		if len(dto.Tokens) != 2 {
			return nil, fmt.Errorf("weighted pool needs exactly 2 tokens, got %d", len(dto.Tokens))
		}
		pair, t0, t1, err := pairFrom(dto.Tokens)
		if err != nil {
			return nil, err
		}
		weights := make(map[eth.Address]*big.Int, len(dto.Weights))
		for tok, w := range dto.Weights {
			addr, err := hexAddr(tok)
			if err != nil {
				return nil, fmt.Errorf("weight token: %w", err)
			}
			n, ok := new(big.Int).SetString(w, 10)
			if !ok {
				return nil, fmt.Errorf("invalid weight %q", w)
			}
			weights[addr] = n
		}
		_ = t0
		_ = t1
		return WeightedPool{PoolID: ID(dto.ID), RouterAddr: router, TokenPair: pair, Weights: weights, FeeBps: dto.FeeBps}, nil

	case "stable":
		tokens := make([]eth.Address, 0, len(dto.Tokens))
		for _, tok := range dto.Tokens {
			addr, err := hexAddr(tok)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, addr)
		}
		amp, ok := new(big.Int).SetString(dto.Amplifier, 10)
		if !ok {
			amp = big.NewInt(0)
		}
		return StablePool{PoolID: ID(dto.ID), RouterAddr: router, Tokens: tokens, Amplifier: amp}, nil

	case "limitOrder":
		makerToken, err := hexAddr(dto.MakerToken)
		if err != nil {
			return nil, err
		}
		takerToken, err := hexAddr(dto.TakerToken)
		if err != nil {
			return nil, err
		}
		makerAmount, ok := new(big.Int).SetString(dto.MakerAmount, 10)
		if !ok {
			return nil, fmt.Errorf("invalid makerAmount %q", dto.MakerAmount)
		}
		takerAmount, ok := new(big.Int).SetString(dto.TakerAmount, 10)
		if !ok {
			return nil, fmt.Errorf("invalid takerAmount %q", dto.TakerAmount)
		}
		pair, err := NewPair(makerToken, takerToken)
		if err != nil {
			return nil, err
		}
		return ForeignLimitOrder{
			PoolID: ID(dto.ID), RouterAddr: router, TokenPair: pair,
			MakerAsset: eth.Asset{Token: makerToken, Amount: makerAmount},
			TakerAsset: eth.Asset{Token: takerToken, Amount: takerAmount},
		}, nil

	default: // "constantProduct" and anything unrecognized falls back to x*y=k
		if len(dto.Tokens) != 2 || len(dto.Reserves) != 2 {
			return nil, fmt.Errorf("constant-product pool needs 2 tokens and 2 reserves")
		}
		pair, _, _, err := pairFrom(dto.Tokens)
		if err != nil {
			return nil, err
		}
		reserveA, ok := new(big.Int).SetString(dto.Reserves[0], 10)
		if !ok {
			return nil, fmt.Errorf("invalid reserve %q", dto.Reserves[0])
		}
		reserveB, ok := new(big.Int).SetString(dto.Reserves[1], 10)
		if !ok {
			return nil, fmt.Errorf("invalid reserve %q", dto.Reserves[1])
		}
		return Reserves{PoolID: ID(dto.ID), RouterAddr: router, TokenPair: pair, ReserveA: reserveA, ReserveB: reserveB, FeeBps: dto.FeeBps}, nil
	}
}

func pairFrom(tokens []string) (Pair, eth.Address, eth.Address, error) {
	t0, err := hexAddr(tokens[0])
	if err != nil {
		return Pair{}, eth.Address{}, eth.Address{}, err
	}
	t1, err := hexAddr(tokens[1])
	if err != nil {
		return Pair{}, eth.Address{}, eth.Address{}, err
	}
	pair, err := NewPair(t0, t1)
	if err != nil {
		return Pair{}, eth.Address{}, eth.Address{}, err
	}
	return pair, t0, t1, nil
}

func hexAddr(s string) (eth.Address, error) {
	if !common.IsHexAddress(s) {
		return eth.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
