package listing

import (
	"errors"
	"time"

	"github.com/alanyoungcy/hotpot/internal/domain"
)

// View is the serialisable rendering of a State, as sent to API and
// websocket clients.
type View struct {
	Step            domain.WizardStep `json:"step"`
	Price           string            `json:"price"`
	Expiration      string            `json:"expiration"`
	Loading         bool              `json:"loading"`
	Validating      bool              `json:"validating"`
	Alert           string            `json:"alert,omitempty"`
	PrimaryAction   Action            `json:"primaryAction"`
	PrimaryLabel    string            `json:"primaryLabel"`
	PrimaryDisabled bool              `json:"primaryDisabled"`
	SecondaryAction Action            `json:"secondaryAction,omitempty"`
	ApprovalTxHash  string            `json:"approvalTxHash,omitempty"`
	ListingTxHash   string            `json:"listingTxHash,omitempty"`
	ExpiresAt       *time.Time        `json:"expiresAt,omitempty"`
	Error           string            `json:"error,omitempty"`
	ErrorStage      Stage             `json:"errorStage,omitempty"`
}

// View renders s.
func (s State) View() View {
	v := View{
		Step:            s.Step,
		Price:           s.Draft.Price.String(),
		Expiration:      s.Draft.Expiration.Value,
		Loading:         s.Loading,
		Validating:      s.Validating,
		Alert:           s.Alert,
		PrimaryAction:   s.PrimaryAction(),
		PrimaryLabel:    s.PrimaryLabel(),
		PrimaryDisabled: s.PrimaryDisabled(),
		SecondaryAction: s.SecondaryAction(),
	}
	if h := s.Outcome.ApprovalTxHash; h != nil {
		v.ApprovalTxHash = h.Hex()
	}
	if h := s.Outcome.ListingTxHash; h != nil {
		v.ListingTxHash = h.Hex()
	}
	if !s.Outcome.ExpiresAt.IsZero() {
		t := s.Outcome.ExpiresAt
		v.ExpiresAt = &t
	}
	if err := s.Outcome.Err; err != nil {
		v.Error = err.Error()
		var se *SubmitError
		if errors.As(err, &se) {
			v.ErrorStage = se.Stage
			v.Error = se.Err.Error()
		}
	}
	return v
}
