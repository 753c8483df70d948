package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/hotpot/internal/domain"
)

// Collection is an ERC-721 collection contract.
type Collection struct {
	client  *Client
	address common.Address
}

// Collection binds the ERC-721 contract at addr.
func (c *Client) Collection(addr common.Address) *Collection {
	return &Collection{client: c, address: addr}
}

// Address returns the collection address.
func (c *Collection) Address() common.Address { return c.address }

// IsApprovedForAll reports whether operator may transfer every token owner
// holds in this collection.
func (c *Collection) IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error) {
	data, err := erc721ABI.Pack("isApprovedForAll", owner, operator)
	if err != nil {
		return false, fmt.Errorf("chain: pack isApprovedForAll: %w", err)
	}
	res, err := c.client.call(ctx, c.address, data)
	if err != nil {
		return false, err
	}
	out, err := erc721ABI.Unpack("isApprovedForAll", res)
	if err != nil {
		return false, fmt.Errorf("chain: unpack isApprovedForAll: %w", err)
	}
	approved, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("chain: isApprovedForAll returned %T", out[0])
	}
	return approved, nil
}

// SetApprovalForAll grants or revokes blanket transfer approval for operator.
func (c *Collection) SetApprovalForAll(ctx context.Context, operator common.Address, approved bool) (domain.PendingTx, error) {
	data, err := erc721ABI.Pack("setApprovalForAll", operator, approved)
	if err != nil {
		return nil, fmt.Errorf("chain: pack setApprovalForAll: %w", err)
	}
	tx, err := c.client.send(ctx, c.address, data)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

var _ domain.CollectionContract = (*Collection)(nil)
