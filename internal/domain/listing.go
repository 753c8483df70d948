package domain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// WizardStep is the position of a listing wizard in its four-step flow.
type WizardStep int

const (
	StepSelectMarkets WizardStep = iota
	StepSetPrice
	StepListItem
	StepComplete
)

// String returns the wire name of the step.
func (s WizardStep) String() string {
	switch s {
	case StepSelectMarkets:
		return "select_markets"
	case StepSetPrice:
		return "set_price"
	case StepListItem:
		return "list_item"
	case StepComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so steps serialise by name.
func (s WizardStep) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a step name produced by MarshalText.
func (s *WizardStep) UnmarshalText(text []byte) error {
	for _, step := range []WizardStep{StepSelectMarkets, StepSetPrice, StepListItem, StepComplete} {
		if step.String() == string(text) {
			*s = step
			return nil
		}
	}
	return fmt.Errorf("unknown wizard step %q", text)
}

// ExpirationUnit is the calendar unit of a relative expiration.
type ExpirationUnit string

const (
	UnitHour  ExpirationUnit = "h"
	UnitDay   ExpirationUnit = "d"
	UnitWeek  ExpirationUnit = "w"
	UnitMonth ExpirationUnit = "M"
)

// ExpirationOption is one entry of the fixed listing expiration table.
type ExpirationOption struct {
	Label  string         `json:"label"`
	Value  string         `json:"value"`
	Amount int            `json:"amount"`
	Unit   ExpirationUnit `json:"unit"`
}

// ExpiresAt returns now shifted forward by the option's relative amount.
// Months and weeks are calendar based.
func (o ExpirationOption) ExpiresAt(now time.Time) time.Time {
	switch o.Unit {
	case UnitHour:
		return now.Add(time.Duration(o.Amount) * time.Hour)
	case UnitDay:
		return now.AddDate(0, 0, o.Amount)
	case UnitWeek:
		return now.AddDate(0, 0, 7*o.Amount)
	case UnitMonth:
		return now.AddDate(0, o.Amount, 0)
	default:
		return now
	}
}

// ListingDraft is the user input collected by the wizard before submission.
type ListingDraft struct {
	Price      decimal.Decimal
	Expiration ExpirationOption
	TokenID    *big.Int
	Collection common.Address
}

// TransactionOutcome captures what happened during the last submission.
// After a submission finishes exactly one of ListingTxHash or Err is set.
type TransactionOutcome struct {
	ApprovalTxHash *common.Hash
	ListingTxHash  *common.Hash
	ExpiresAt      time.Time
	Err            error
}

// ListingRecord is a completed listing as persisted by the listing store.
type ListingRecord struct {
	ID             int64           `json:"id"`
	Collection     string          `json:"collection"`
	TokenID        string          `json:"tokenId"`
	Seller         string          `json:"seller"`
	Marketplace    string          `json:"marketplace"`
	Price          decimal.Decimal `json:"price"`
	PriceWei       string          `json:"priceWei"`
	Expiration     string          `json:"expiration"`
	ExpiresAt      time.Time       `json:"expiresAt"`
	ApprovalTxHash string          `json:"approvalTxHash,omitempty"`
	ListingTxHash  string          `json:"listingTxHash"`
	CreatedAt      time.Time       `json:"createdAt"`
}
