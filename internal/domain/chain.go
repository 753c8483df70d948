package domain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PendingTx is a broadcast transaction that has not necessarily been mined.
type PendingTx interface {
	Hash() common.Hash
	// Wait blocks until the transaction is mined. It returns ErrTxReverted
	// (wrapped) when the receipt reports failure.
	Wait(ctx context.Context) error
}

// CollectionContract is the subset of an ERC-721 collection used for listing.
type CollectionContract interface {
	Address() common.Address
	IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error)
	SetApprovalForAll(ctx context.Context, operator common.Address, approved bool) (PendingTx, error)
}

// MarketplaceContract is the subset of the Hotpot marketplace used for listing.
type MarketplaceContract interface {
	Address() common.Address
	MakeItem(ctx context.Context, collection common.Address, tokenID, price *big.Int) (PendingTx, error)
}
