package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/hotpot/internal/domain"
)

// Marketplace is the Hotpot marketplace contract.
type Marketplace struct {
	client  *Client
	address common.Address
}

// Marketplace binds the marketplace contract at addr.
func (c *Client) Marketplace(addr common.Address) *Marketplace {
	return &Marketplace{client: c, address: addr}
}

// Address returns the marketplace address.
func (m *Marketplace) Address() common.Address { return m.address }

// MakeItem lists tokenID of collection at price (18-decimal fixed point).
func (m *Marketplace) MakeItem(ctx context.Context, collection common.Address, tokenID, price *big.Int) (domain.PendingTx, error) {
	if tokenID == nil || price == nil {
		return nil, fmt.Errorf("chain: makeItem: token id and price are required")
	}
	data, err := marketplaceABI.Pack("makeItem", collection, tokenID, price)
	if err != nil {
		return nil, fmt.Errorf("chain: pack makeItem: %w", err)
	}
	tx, err := m.client.send(ctx, m.address, data)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// CurrentPotSize returns the accumulated prize pool in wei.
func (m *Marketplace) CurrentPotSize(ctx context.Context) (*big.Int, error) {
	return m.uintView(ctx, "currentPotSize")
}

// PotLimit returns the prize pool cap in wei.
func (m *Marketplace) PotLimit(ctx context.Context) (*big.Int, error) {
	return m.uintView(ctx, "potLimit")
}

func (m *Marketplace) uintView(ctx context.Context, method string) (*big.Int, error) {
	data, err := marketplaceABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}
	res, err := m.client.call(ctx, m.address, data)
	if err != nil {
		return nil, err
	}
	out, err := marketplaceABI.Unpack(method, res)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack %s: %w", method, err)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: %s returned %T", method, out[0])
	}
	return v, nil
}

var _ domain.MarketplaceContract = (*Marketplace)(nil)
