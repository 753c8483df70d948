package listing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/hotpot/internal/domain"
)

// Stage names the step of the submission protocol that failed.
type Stage string

const (
	StageCollaborators Stage = "collaborators"
	StagePrice         Stage = "price"
	StageApprovalCheck Stage = "approval_check"
	StageApproval      Stage = "approval"
	StageListing       Stage = "listing"
	StageConfirmation  Stage = "confirmation"
)

// SubmitError is the error captured by a failed submission.
type SubmitError struct {
	Stage Stage
	Err   error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("listing: %s: %v", e.Stage, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// Toast copy for a confirmed listing.
const (
	successTitle   = "Success!"
	successMessage = "Your item was listed successfully"
)

// CheckSubmit reports whether Submit would start a submission now, without
// changing the wizard. Callers that run Submit in the background use it to
// reject requests synchronously.
func (w *Wizard) CheckSubmit() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.Loading {
		return domain.ErrSubmissionInFlight
	}
	retry := w.state.Step == domain.StepListItem && w.state.Outcome.Err != nil
	if w.state.Step != domain.StepSetPrice && !retry {
		return fmt.Errorf("listing: submit at %s: %w", w.state.Step, domain.ErrInvalidTransition)
	}
	if !w.state.Draft.Price.GreaterThan(decimal.Zero) {
		return domain.ErrInvalidPrice
	}
	return nil
}

// Submit runs the submission protocol. It is the primary action at SetPrice
// and the Retry action at ListItem after a failure; a retry always starts
// over, re-checking the approval before listing again.
func (w *Wizard) Submit(ctx context.Context) error {
	w.mu.Lock()
	if w.state.Loading {
		w.mu.Unlock()
		return domain.ErrSubmissionInFlight
	}
	retry := w.state.Step == domain.StepListItem && w.state.Outcome.Err != nil
	if w.state.Step != domain.StepSetPrice && !retry {
		step := w.state.Step
		w.mu.Unlock()
		return fmt.Errorf("listing: submit at %s: %w", step, domain.ErrInvalidTransition)
	}
	if !w.state.Draft.Price.GreaterThan(decimal.Zero) {
		w.state.Alert = AlertPriceNotPositive
		w.mu.Unlock()
		w.emit()
		return domain.ErrInvalidPrice
	}

	w.state.Step = domain.StepListItem
	w.state.Loading = true
	w.state.Validating = false
	w.state.Alert = ""
	w.state.Outcome = domain.TransactionOutcome{}
	draft := w.state.Draft
	w.mu.Unlock()
	w.emit()

	w.logger.InfoContext(ctx, "listing submission started",
		slog.String("collection", w.item.Collection.Hex()),
		slog.String("token_id", tokenIDString(w.item)),
		slog.String("price", draft.Price.String()),
		slog.Bool("retry", retry),
	)

	receipt, err := w.run(ctx, draft)
	if err != nil {
		w.fail(ctx, err)
		return err
	}
	w.succeed(ctx, receipt)
	return nil
}

// run performs the external calls. Panics raised by collaborators are
// recovered and normalised into a SubmitError.
func (w *Wizard) run(ctx context.Context, draft domain.ListingDraft) (receipt Receipt, err error) {
	stage := StageCollaborators
	defer func() {
		if r := recover(); r != nil {
			err = &SubmitError{Stage: stage, Err: normalizeError(r)}
		}
	}()

	deps := w.deps
	if deps.Collection == nil || deps.Marketplace == nil || deps.Account == (common.Address{}) {
		return Receipt{}, &SubmitError{Stage: stage, Err: domain.ErrCollaboratorUnavailable}
	}

	stage = StagePrice
	wei, err := ToFixedPoint(draft.Price)
	if err != nil {
		return Receipt{}, &SubmitError{Stage: stage, Err: err}
	}
	expiresAt := draft.Expiration.ExpiresAt(w.now())
	w.update(func(s *State) { s.Outcome.ExpiresAt = expiresAt })

	operator := deps.Marketplace.Address()

	stage = StageApprovalCheck
	approved, err := deps.Collection.IsApprovedForAll(ctx, deps.Account, operator)
	if err != nil {
		return Receipt{}, &SubmitError{Stage: stage, Err: err}
	}

	var approvalHash *common.Hash
	if !approved {
		stage = StageApproval
		tx, err := deps.Collection.SetApprovalForAll(ctx, operator, true)
		if err != nil {
			return Receipt{}, &SubmitError{Stage: stage, Err: err}
		}
		h := tx.Hash()
		approvalHash = &h
		w.update(func(s *State) { s.Outcome.ApprovalTxHash = &h })
		w.logger.InfoContext(ctx, "approval transaction sent", slog.String("tx_hash", h.Hex()))

		if err := tx.Wait(ctx); err != nil {
			return Receipt{}, &SubmitError{Stage: stage, Err: err}
		}
	}

	stage = StageListing
	tx, err := deps.Marketplace.MakeItem(ctx, w.item.Collection, w.item.TokenID, wei)
	if err != nil {
		return Receipt{}, &SubmitError{Stage: stage, Err: err}
	}
	listingHash := tx.Hash()
	w.update(func(s *State) {
		s.Validating = true
		s.Outcome.ListingTxHash = &listingHash
	})
	w.logger.InfoContext(ctx, "listing transaction sent", slog.String("tx_hash", listingHash.Hex()))

	stage = StageConfirmation
	if err := tx.Wait(ctx); err != nil {
		return Receipt{}, &SubmitError{Stage: stage, Err: err}
	}

	return Receipt{
		Item:           w.item,
		Seller:         deps.Account,
		Marketplace:    operator,
		Price:          draft.Price,
		PriceWei:       wei,
		Expiration:     draft.Expiration,
		ExpiresAt:      expiresAt,
		ApprovalTxHash: approvalHash,
		ListingTxHash:  listingHash,
	}, nil
}

func (w *Wizard) succeed(ctx context.Context, receipt Receipt) {
	w.mu.Lock()
	w.state.Loading = false
	w.state.Validating = false
	w.state.Step = domain.StepComplete
	h := receipt.ListingTxHash
	w.state.Outcome.ListingTxHash = &h
	w.state.Outcome.Err = nil
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "listing confirmed",
		slog.String("collection", receipt.Item.Collection.Hex()),
		slog.String("token_id", tokenIDString(receipt.Item)),
		slog.String("tx_hash", h.Hex()),
	)

	if w.toaster != nil {
		w.toaster.Toast(ctx, domain.Toast{
			Kind:    domain.ToastSuccess,
			Title:   successTitle,
			Message: successMessage,
		})
	}
	if w.onListed != nil {
		w.onListed(ctx, receipt)
	}
	w.emit()
}

func (w *Wizard) fail(ctx context.Context, err error) {
	w.mu.Lock()
	w.state.Loading = false
	w.state.Validating = false
	w.state.Outcome.ListingTxHash = nil
	w.state.Outcome.Err = err
	w.mu.Unlock()

	w.logger.WarnContext(ctx, "listing submission failed", slog.String("error", err.Error()))

	if w.onListingError != nil {
		w.onListingError(err)
	}
	w.emit()
}

// update applies fn under the lock and publishes the new state.
func (w *Wizard) update(fn func(*State)) {
	w.mu.Lock()
	fn(&w.state)
	w.mu.Unlock()
	w.emit()
}

// normalizeError turns a recovered value into an error. Values that are not
// errors become domain.ErrUnknown.
func normalizeError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return domain.ErrUnknown
}

func tokenIDString(item Item) string {
	if item.TokenID == nil {
		return ""
	}
	return item.TokenID.String()
}

// IsRetryable reports whether err leaves the wizard in a state where Retry
// is offered.
func IsRetryable(err error) bool {
	var se *SubmitError
	return errors.As(err, &se)
}
