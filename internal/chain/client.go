// Package chain implements the contract collaborators of the listing wizard
// on top of go-ethereum: read calls, signed transactions and receipt polling.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/hotpot/internal/domain"
)

// gasMarginPercent is added on top of the node's gas estimate.
const gasMarginPercent = 20

// defaultPollInterval is how often pending transactions poll for a receipt.
const defaultPollInterval = 2 * time.Second

// Backend is the subset of an Ethereum JSON-RPC client used by this package.
// *ethclient.Client satisfies it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// TxSigner signs transactions on behalf of a single account.
type TxSigner interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// ClientConfig holds RPC connection parameters.
type ClientConfig struct {
	RPCURL string
	// ChainID, when non-zero, must match the chain reported by the node.
	ChainID      int64
	PollInterval time.Duration
}

// Client sends calls and transactions to a single chain.
type Client struct {
	backend      Backend
	signer       TxSigner
	chainID      *big.Int
	pollInterval time.Duration
	closeFn      func()
	logger       *slog.Logger

	// sendMu serialises nonce allocation across concurrent submissions.
	sendMu sync.Mutex
}

// Dial connects to the RPC endpoint and verifies the chain id. signer may be
// nil for a read-only client.
func Dial(ctx context.Context, cfg ClientConfig, signer TxSigner, logger *slog.Logger) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("chain: rpc_url is required")
	}
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial rpc: %w", err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain: chain id: %w", err)
	}
	if cfg.ChainID != 0 && chainID.Int64() != cfg.ChainID {
		eth.Close()
		return nil, fmt.Errorf("chain: node reports chain %s, configured %d", chainID, cfg.ChainID)
	}

	c := NewClient(eth, signer, chainID, cfg.PollInterval, logger)
	c.closeFn = eth.Close
	return c, nil
}

// NewClient wraps an existing backend.
func NewClient(backend Backend, signer TxSigner, chainID *big.Int, pollInterval time.Duration, logger *slog.Logger) *Client {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Client{
		backend:      backend,
		signer:       signer,
		chainID:      chainID,
		pollInterval: pollInterval,
		logger:       logger.With(slog.String("component", "chain")),
	}
}

// Close releases the RPC connection when the client owns it.
func (c *Client) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

// ChainID returns the chain the client is connected to.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Account returns the signing account, or the zero address for a read-only
// client.
func (c *Client) Account() common.Address {
	if c.signer == nil {
		return common.Address{}
	}
	return c.signer.Address()
}

// call executes a read-only contract call against the latest block.
func (c *Client) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{To: &to, Data: data}
	if c.signer != nil {
		msg.From = c.signer.Address()
	}
	out, err := c.backend.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: call %s: %w", to.Hex(), err)
	}
	return out, nil
}

// send signs and broadcasts a transaction calling to with data.
func (c *Client) send(ctx context.Context, to common.Address, data []byte) (*PendingTx, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("chain: no signer configured: %w", domain.ErrCollaboratorUnavailable)
	}
	from := c.signer.Address()

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("chain: pending nonce: %w", err)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain: gas price: %w", err)
	}
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return nil, fmt.Errorf("chain: estimate gas: %w", err)
	}
	gas += gas * gasMarginPercent / 100

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    big.NewInt(0),
		Data:     data,
	})
	signed, err := c.signer.SignTx(tx, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("chain: sign tx: %w", err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("chain: send tx: %w", err)
	}

	c.logger.DebugContext(ctx, "transaction broadcast",
		slog.String("to", to.Hex()),
		slog.Uint64("nonce", nonce),
		slog.Uint64("gas", gas),
		slog.String("tx_hash", signed.Hash().Hex()),
	)

	return &PendingTx{
		backend:      c.backend,
		hash:         signed.Hash(),
		pollInterval: c.pollInterval,
	}, nil
}
