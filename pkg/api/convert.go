package api

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/auctiondriver/driver/pkg/domain/auction"
	"github.com/auctiondriver/driver/pkg/domain/eth"
)

func parseBigInt(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal amount %q", s)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", s)
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
		return uid, fmt.Errorf("invalid order uid: %w", err)
	}
	if len(b) != len(uid) {
		return uid, fmt.Errorf("order uid must be %d bytes, got %d", len(uid), len(b))
	}
	copy(uid[:], b)
	return uid, nil
}

func parseAppData(s string) ([32]byte, error) {
	var out [32]byte
	b, err := parseHexBytes(s)
	if err != nil {
		return out, fmt.Errorf("invalid appData: %w", err)
	}
	if len(b) != 32 {
		return out, fmt.Errorf("appData must be 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

func parseSide(s string) (auction.Side, error) {
	switch s {
	case "sell":
		return auction.Sell, nil
	case "buy":
		return auction.Buy, nil
	default:
		return 0, fmt.Errorf("invalid side %q", s)
	}
}

func parseKind(s string) (auction.Kind, error) {
	switch s {
	case "market":
		return auction.Market, nil
	case "limit":
		return auction.Limit, nil
	case "liquidity":
		return auction.Liquidity, nil
	default:
		return 0, fmt.Errorf("invalid order kind %q", s)
	}
}

func toOrder(dto OrderDTO) (auction.Order, error) {
	uid, err := parseUid(dto.UID)
	if err != nil {
		return auction.Order{}, err
	}
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
	side, err := parseSide(dto.Side)
	if err != nil {
		return auction.Order{}, err
	}
	kind, err := parseKind(dto.Kind)
	if err != nil {
		return auction.Order{}, err
	}
	appData, err := parseAppData(dto.AppData)
	if err != nil {
		return auction.Order{}, err
	}
	sig, err := parseHexBytes(dto.Signature)
	if err != nil {
		return auction.Order{}, fmt.Errorf("signature: %w", err)
	}

	var surplusFee *big.Int
	if dto.SurplusFee != "" {
		surplusFee, err = parseBigInt(dto.SurplusFee)
		if err != nil {
			return auction.Order{}, fmt.Errorf("surplusFee: %w", err)
		}
	}

	o := auction.Order{
		UID:        uid,
		Sell:       eth.Asset{Token: common.HexToAddress(dto.SellToken), Amount: sellAmount},
		Buy:        eth.Asset{Token: common.HexToAddress(dto.BuyToken), Amount: buyAmount},
		Fee:        eth.Asset{Token: common.HexToAddress(dto.FeeToken), Amount: feeAmount},
		Side:       side,
		Kind:       kind,
		Partial:    dto.Partial,
		SurplusFee: surplusFee,
		Signature:  sig,
		ValidTo:    dto.ValidTo,
		Receiver:   common.HexToAddress(dto.Receiver),
		AppData:    appData,
	}
	if err := o.Validate(); err != nil {
		return auction.Order{}, err
	}
	return o, nil
}

// ToAuction converts a SolveRequest into the domain Auction the competition
// operates on.
func ToAuction(req SolveRequest) (auction.Auction, error) {
	deadline, err := time.Parse(time.RFC3339, req.Deadline)
	if err != nil {
		return auction.Auction{}, fmt.Errorf("invalid deadline: %w", err)
	}
	gasPrice, err := parseBigInt(req.GasPrice)
	if err != nil {
		return auction.Auction{}, fmt.Errorf("gasPrice: %w", err)
	}

	tokens := make(map[eth.Address]auction.TokenInfo, len(req.Tokens))
	for addr, info := range req.Tokens {
		var refPrice *big.Int
		if info.ReferencePrice != "" {
			refPrice, err = parseBigInt(info.ReferencePrice)
			if err != nil {
				return auction.Auction{}, fmt.Errorf("token %s referencePrice: %w", addr, err)
			}
		}
		balance, err := parseBigInt(info.AvailableBalance)
		if err != nil {
			return auction.Auction{}, fmt.Errorf("token %s availableBalance: %w", addr, err)
		}
		tokens[common.HexToAddress(addr)] = auction.TokenInfo{
			Decimals:         info.Decimals,
			Symbol:           info.Symbol,
			ReferencePrice:   refPrice,
			AvailableBalance: balance,
			Trusted:          info.Trusted,
		}
	}

	orders := make([]auction.Order, 0, len(req.Orders))
	for i, dto := range req.Orders {
		o, err := toOrder(dto)
		if err != nil {
			return auction.Auction{}, fmt.Errorf("order[%d]: %w", i, err)
		}
		orders = append(orders, o)
	}

	var id *auction.Id
	if req.Id != nil {
		aid := auction.Id(*req.Id)
		id = &aid
	}

	return auction.Auction{
		ID:       id,
		Deadline: deadline,
		Orders:   orders,
		Tokens:   tokens,
		GasPrice: gasPrice,
	}, nil
}
