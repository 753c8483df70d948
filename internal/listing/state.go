package listing

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/hotpot/internal/domain"
)

// Action identifies the handler bound to a wizard button.
type Action string

const (
	ActionNone   Action = ""
	ActionNext   Action = "next"
	ActionSubmit Action = "submit"
	ActionRetry  Action = "retry"
	ActionEdit   Action = "edit"
	ActionClose  Action = "close"
)

// Button copy.
const (
	LabelNext               = "Next"
	LabelClose              = "Close"
	LabelRetry              = "Retry"
	LabelEditListing        = "Edit Listing"
	LabelAwaitingApproval   = "Waiting for Approval"
	LabelAwaitingValidation = "Waiting to be Validated"

	AlertPriceNotPositive = "Price must be greater than 0."
)

// State is an immutable snapshot of a wizard. All display derivations are
// methods on State and never mutate the wizard.
type State struct {
	Step       domain.WizardStep
	Draft      domain.ListingDraft
	Loading    bool
	Validating bool // listing tx broadcast, waiting for confirmation
	Alert      string
	Outcome    domain.TransactionOutcome
}

// Err returns the error captured by the last failed submission, if any.
func (s State) Err() error { return s.Outcome.Err }

// ActionLabel is the resting label for step, ignoring loading and error.
func ActionLabel(step domain.WizardStep) string {
	switch step {
	case domain.StepListItem:
		return LabelAwaitingApproval
	case domain.StepComplete:
		return LabelClose
	default:
		return LabelNext
	}
}

// PrimaryAction returns the handler bound to the primary button.
// Loading suppresses it entirely; an error substitutes Retry.
func (s State) PrimaryAction() Action {
	if s.Loading {
		return ActionNone
	}
	if s.Step == domain.StepComplete {
		return ActionClose
	}
	if s.Outcome.Err != nil {
		return ActionRetry
	}
	switch s.Step {
	case domain.StepSetPrice:
		return ActionSubmit
	case domain.StepSelectMarkets:
		return ActionNext
	default:
		return ActionNone
	}
}

// PrimaryLabel returns the text shown on the primary button.
func (s State) PrimaryLabel() string {
	switch {
	case s.Loading && s.Validating:
		return LabelAwaitingValidation
	case s.Loading:
		return LabelAwaitingApproval
	case s.Outcome.Err != nil && s.Step != domain.StepComplete:
		return LabelRetry
	default:
		return ActionLabel(s.Step)
	}
}

// PrimaryDisabled reports whether the primary button is disabled.
func (s State) PrimaryDisabled() bool {
	if s.Loading {
		return true
	}
	return s.Step == domain.StepSetPrice && !s.Draft.Price.GreaterThan(decimal.Zero)
}

// ShowEdit reports whether the secondary "Edit Listing" action is offered.
func (s State) ShowEdit() bool {
	return !s.Loading && s.Outcome.Err != nil && s.Step == domain.StepListItem
}

// SecondaryAction returns ActionEdit when ShowEdit holds.
func (s State) SecondaryAction() Action {
	if s.ShowEdit() {
		return ActionEdit
	}
	return ActionNone
}
