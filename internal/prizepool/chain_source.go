package prizepool

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/hotpot/internal/domain"
)

// weiDecimals is the fixed-point scale of the pot values on chain.
const weiDecimals = 18

// PoolReader is the marketplace view surface read by ChainSource.
// *chain.Marketplace satisfies it.
type PoolReader interface {
	CurrentPotSize(ctx context.Context) (*big.Int, error)
	PotLimit(ctx context.Context) (*big.Int, error)
}

// ChainSource reads the snapshot directly from the marketplace contract.
type ChainSource struct {
	reader PoolReader
}

// NewChainSource creates a source backed by reader.
func NewChainSource(reader PoolReader) *ChainSource {
	return &ChainSource{reader: reader}
}

// Fetch reads both views and formats them as ETH decimals.
func (s *ChainSource) Fetch(ctx context.Context) (*domain.PrizePoolSnapshot, error) {
	pot, err := s.reader.CurrentPotSize(ctx)
	if err != nil {
		return nil, fmt.Errorf("prizepool: current pot size: %w", err)
	}
	limit, err := s.reader.PotLimit(ctx)
	if err != nil {
		return nil, fmt.Errorf("prizepool: pot limit: %w", err)
	}
	return &domain.PrizePoolSnapshot{
		CurrentPotSize: formatWei(pot),
		PotLimit:       formatWei(limit),
	}, nil
}

func formatWei(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -weiDecimals).String()
}
