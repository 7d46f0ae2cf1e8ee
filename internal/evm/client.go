// Package evm implements the on-chain collaborator interfaces over a
// JSON-RPC endpoint using go-ethereum. Contract surfaces are described
// by minimal hand-written ABI fragments; read calls go through
// bind.BoundContract and state changes through the Transactor.
package evm

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Client wraps an ethclient connection with the chain id resolved at
// dial time.
type Client struct {
	eth     *ethclient.Client
	chainID *big.Int
	logger  *slog.Logger
}

// Dial connects to the JSON-RPC endpoint and resolves the chain id.
func Dial(ctx context.Context, rpcURL string, logger *slog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("evm: dialing %s: %w", rpcURL, err)
	}
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("evm: resolving chain id: %w", err)
	}
	return &Client{
		eth:     eth,
		chainID: chainID,
		logger:  logger.With(slog.String("component", "evm")),
	}, nil
}

// ChainID returns the connected chain's id.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Eth exposes the underlying ethclient for callers that need raw access.
func (c *Client) Eth() *ethclient.Client {
	return c.eth
}

// Close releases the RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}
