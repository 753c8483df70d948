package listing

import "github.com/alanyoungcy/hotpot/internal/domain"

// expirationOptions is the fixed table offered by the price step.
var expirationOptions = []domain.ExpirationOption{
	{Label: "1 Hour", Value: "hour", Amount: 1, Unit: domain.UnitHour},
	{Label: "12 Hours", Value: "12 hours", Amount: 12, Unit: domain.UnitHour},
	{Label: "1 Day", Value: "1 day", Amount: 1, Unit: domain.UnitDay},
	{Label: "3 Days", Value: "3 days", Amount: 3, Unit: domain.UnitDay},
	{Label: "1 Week", Value: "week", Amount: 1, Unit: domain.UnitWeek},
	{Label: "1 Month", Value: "month", Amount: 1, Unit: domain.UnitMonth},
	{Label: "3 Months", Value: "3 months", Amount: 3, Unit: domain.UnitMonth},
	{Label: "6 Months", Value: "6 months", Amount: 6, Unit: domain.UnitMonth},
}

const defaultExpirationValue = "6 months"

// ExpirationOptions returns a copy of the expiration table in display order.
func ExpirationOptions() []domain.ExpirationOption {
	out := make([]domain.ExpirationOption, len(expirationOptions))
	copy(out, expirationOptions)
	return out
}

// DefaultExpiration returns the option preselected on a fresh draft.
func DefaultExpiration() domain.ExpirationOption {
	opt, _ := LookupExpiration(defaultExpirationValue)
	return opt
}

// LookupExpiration finds an option by its value.
func LookupExpiration(value string) (domain.ExpirationOption, bool) {
	for _, opt := range expirationOptions {
		if opt.Value == value {
			return opt, true
		}
	}
	return domain.ExpirationOption{}, false
}
