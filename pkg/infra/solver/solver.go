// Package solver dispatches one auction round to a solver engine's HTTP
// endpoint and decodes its candidate solutions. The engine itself
// (baseline heuristics, a legacy HTTP solver, whatever a team plugs in) is
// out of scope here: this package only speaks the wire protocol.
package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/auctiondriver/driver/pkg/domain/auction"
	"github.com/auctiondriver/driver/pkg/domain/competition/solution"
	"github.com/auctiondriver/driver/pkg/infra/liquidity"
)

// Client dispatches auctions to one configured solver endpoint.
type Client struct {
	name       string
	endpoint   string
	httpClient *http.Client
}

// New builds a Client bound to name and endpoint. timeout caps every
// individual HTTP round trip; the auction's own deadline additionally
// caps the context passed to Solve.
func New(name, endpoint string, timeout time.Duration) *Client {
	return &Client{
		name:       name,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name returns the solver's configured label.
func (c *Client) Name() string { return c.name }

type solveRequest struct {
	Auction   auctionDTO    `json:"auction"`
	Liquidity []liquidityDTO `json:"liquidity"`
}

type solveResponse struct {
	Solutions []solutionDTO `json:"solutions"`
}

// Solve posts the auction and relevant liquidity to the solver endpoint
// and decodes whatever solutions it returns. A solver returning zero
// solutions is not an error: the competition just has nothing to encode.
func (c *Client) Solve(ctx context.Context, a auction.Auction, liq liquidity.Snapshot) ([]solution.Solution, error) {
	body, err := json.Marshal(solveRequest{
		Auction:   toAuctionDTO(a),
		Liquidity: toLiquidityDTOs(liq),
	})
	if err != nil {
		return nil, fmt.Errorf("solver: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("solver: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("solver: request %s: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("solver: %s responded %d", c.name, resp.StatusCode)
	}

	var out solveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("solver: decode response: %w", err)
	}

	solutions := make([]solution.Solution, 0, len(out.Solutions))
	for i, dto := range out.Solutions {
		sol, err := fromSolutionDTO(dto, c)
		if err != nil {
			return nil, fmt.Errorf("solver: solution[%d]: %w", i, err)
		}
		solutions = append(solutions, sol)
	}
	return solutions, nil
}
