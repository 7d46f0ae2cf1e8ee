package evm

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/crypto"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
)

// Transactor signs and submits transactions and waits for inclusion.
// Submissions are serialized so concurrent callers cannot race on the
// account nonce.
type Transactor struct {
	client *Client
	signer *crypto.Signer
	logger *slog.Logger

	mu sync.Mutex
}

// NewTransactor creates a Transactor.
func NewTransactor(client *Client, signer *crypto.Signer, logger *slog.Logger) *Transactor {
	return &Transactor{
		client: client,
		signer: signer,
		logger: logger.With(slog.String("component", "transactor")),
	}
}

// From returns the sending address.
func (t *Transactor) From() common.Address {
	return t.signer.Address()
}

// SendAndWait submits a contract call and blocks until it is mined.
// A reverted transaction is reported as domain.ErrSwapFailed with the
// receipt still returned for inspection.
func (t *Transactor) SendAndWait(ctx context.Context, to common.Address, data []byte) (*types.Receipt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	from := t.signer.Address()

	nonce, err := t.client.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("evm: fetching nonce: %w", err)
	}
	tipCap, err := t.client.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("evm: suggesting tip cap: %w", err)
	}
	head, err := t.client.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("evm: fetching head: %w", err)
	}
	// Tip plus twice the current base fee survives moderate fee spikes
	// while the transaction is pending.
	feeCap := new(big.Int).Add(tipCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	gas, err := t.client.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &to,
		Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("evm: estimating gas: %w", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   t.client.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gas + gas/5,
		To:        &to,
		Data:      data,
	})
	signed, err := t.signer.SignTx(tx, t.client.chainID)
	if err != nil {
		return nil, err
	}

	if err := t.client.eth.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("evm: submitting tx: %w", err)
	}
	t.logger.Info("transaction submitted",
		slog.String("tx", signed.Hash().Hex()),
		slog.String("to", to.Hex()),
		slog.Uint64("nonce", nonce))

	receipt, err := bind.WaitMined(ctx, t.client.eth, signed)
	if err != nil {
		return nil, fmt.Errorf("evm: waiting for tx %s: %w", signed.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("evm: tx %s reverted: %w", signed.Hash().Hex(), domain.ErrSwapFailed)
	}
	return receipt, nil
}
