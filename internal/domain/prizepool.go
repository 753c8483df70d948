package domain

// PrizePoolSnapshot is the current pot size and pot limit of the prize pool,
// both as non-negative decimal strings denominated in ETH.
type PrizePoolSnapshot struct {
	CurrentPotSize string `json:"currentPotSize"`
	PotLimit       string `json:"potLimit"`
}
