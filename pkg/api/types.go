package api

// Wire types for the /solve and /settle endpoints. Amounts and addresses
// are hex/decimal strings, never JSON numbers: clearing prices and token
// amounts routinely exceed float64 precision.

// SolveRequest is the body of POST /solve: everything the competition needs
// to run one round for this solver.
type SolveRequest struct {
	Id       *uint64        `json:"id,omitempty"`
	Deadline string         `json:"deadline"` // RFC3339
	GasPrice string         `json:"gasPrice"` // wei, decimal string
	Tokens   map[string]TokenInfoDTO `json:"tokens"`
	Orders   []OrderDTO     `json:"orders"`
}

// TokenInfoDTO is the auction's market context for one token.
type TokenInfoDTO struct {
	Decimals         uint8  `json:"decimals"`
	Symbol           string `json:"symbol"`
	ReferencePrice   string `json:"referencePrice,omitempty"`
	AvailableBalance string `json:"availableBalance"`
	Trusted          bool   `json:"trusted"`
}

// OrderDTO is one order as carried over the wire.
type OrderDTO struct {
	UID        string `json:"uid"` // 0x-prefixed, 112 hex chars (56 bytes)
	SellToken  string `json:"sellToken"`
	SellAmount string `json:"sellAmount"`
	BuyToken   string `json:"buyToken"`
	BuyAmount  string `json:"buyAmount"`
	FeeToken   string `json:"feeToken"`
	FeeAmount  string `json:"feeAmount"`
	Side       string `json:"side"` // "sell" | "buy"
	Kind       string `json:"kind"` // "market" | "limit" | "liquidity"
	Partial    bool   `json:"partiallyFillable"`
	SurplusFee string `json:"surplusFee,omitempty"`
	Signature  string `json:"signature"`
	ValidTo    uint32 `json:"validTo"`
	Receiver   string `json:"receiver"`
	AppData    string `json:"appData"` // 0x-prefixed, 32 bytes
}

// SolveResponse is the success body of POST /solve.
type SolveResponse struct {
	Id     *uint64  `json:"id,omitempty"`
	Score  string   `json:"score"`
	Orders []string `json:"orders"`
}

// SettleResponse is the success body of POST /settle.
type SettleResponse struct {
	Internalized   string `json:"internalized"`
	Uninternalized string `json:"uninternalized"`
}

// ErrorResponse is returned for every non-2xx response.
type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Observability WebSocket messages, broadcast on the /events stream.

// WSSubscribeRequest is sent by a client to subscribe to broadcast channels;
// today the only channel is "events", but the hub stays channel-based so a
// future per-solver or per-order stream doesn't need a protocol change.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// Event is the envelope every observability message is wrapped in.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// EmptySolutionEvent announces a solver result that settled no user trades.
type EmptySolutionEvent struct {
	Solver     string `json:"solver"`
	SolutionID uint64 `json:"solutionId"`
}

// EncodingFailedEvent announces a solution that failed the encoding pipeline.
type EncodingFailedEvent struct {
	Solver     string `json:"solver"`
	SolutionID uint64 `json:"solutionId"`
	Reason     string `json:"reason"`
}

// ScoreEvent announces a settlement's computed score.
type ScoreEvent struct {
	Solver string `json:"solver"`
	Score  string `json:"score"`
	Orders int    `json:"orders"`
}

// RevealedEvent announces the winning settlement of a /solve round.
type RevealedEvent struct {
	Solver string   `json:"solver"`
	Score  string   `json:"score"`
	Orders []string `json:"orders"`
}

// SettledEvent announces that /settle dispatched a settlement to the
// mempool submitter.
type SettledEvent struct {
	Solver string `json:"solver"`
	Orders int    `json:"orders"`
	Gas    uint64 `json:"gas"`
}
