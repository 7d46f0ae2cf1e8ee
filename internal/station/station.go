// Package station talks to the automation funding contract. The
// keeper checks the subscription balance each sweep and tops it up
// when it drops under the configured floor; the decision and execution
// core never touch it.
package station

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/evm"
)

const stationABI = `[
	{"inputs":[],"name":"availableFunds","outputs":[{"name":"","type":"uint96"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"amount","type":"uint96"}],"name":"addFunds","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

var parsedStation = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(stationABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// Client funds the automation subscription through the station
// contract.
type Client struct {
	client     *evm.Client
	transactor *evm.Transactor
	station    common.Address
	logger     *slog.Logger
}

// New creates a station Client.
func New(client *evm.Client, transactor *evm.Transactor, station common.Address, logger *slog.Logger) *Client {
	return &Client{
		client:     client,
		transactor: transactor,
		station:    station,
		logger:     logger.With(slog.String("component", "station")),
	}
}

// SubscriptionBalance returns the funds currently available to the
// subscription.
func (c *Client) SubscriptionBalance(ctx context.Context) (*big.Int, error) {
	contract := bind.NewBoundContract(c.station, parsedStation, c.client.Eth(), c.client.Eth(), c.client.Eth())
	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "availableFunds"); err != nil {
		return nil, fmt.Errorf("station: reading available funds: %w", err)
	}
	return out[0].(*big.Int), nil
}

// TopUp adds amount to the subscription.
func (c *Client) TopUp(ctx context.Context, amount *big.Int) error {
	data, err := parsedStation.Pack("addFunds", amount)
	if err != nil {
		return fmt.Errorf("station: packing addFunds: %w", err)
	}
	if _, err := c.transactor.SendAndWait(ctx, c.station, data); err != nil {
		return fmt.Errorf("station: topping up: %w", err)
	}
	c.logger.Info("subscription topped up", slog.String("amount", amount.String()))
	return nil
}

// Compile-time interface check.
var _ domain.StationClient = (*Client)(nil)
