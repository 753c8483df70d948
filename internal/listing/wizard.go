// Package listing implements the "list item for sale" wizard: a four-step
// state machine that collects a price and an expiration, then drives the
// approval and listing transactions against the marketplace contract.
package listing

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/hotpot/internal/domain"
)

// Item identifies the token being listed.
type Item struct {
	Collection common.Address
	TokenID    *big.Int
}

// Deps are the wallet and contract collaborators a wizard talks to. A zero
// Account or a nil contract makes every submission fail with
// domain.ErrCollaboratorUnavailable.
type Deps struct {
	Account     common.Address
	Collection  domain.CollectionContract
	Marketplace domain.MarketplaceContract
}

// Toaster receives user-facing notifications. Delivery is fire-and-forget.
type Toaster interface {
	Toast(ctx context.Context, t domain.Toast)
}

// Receipt describes a listing that was confirmed on chain.
type Receipt struct {
	Item           Item
	Seller         common.Address
	Marketplace    common.Address
	Price          decimal.Decimal
	PriceWei       *big.Int
	Expiration     domain.ExpirationOption
	ExpiresAt      time.Time
	ApprovalTxHash *common.Hash
	ListingTxHash  common.Hash
}

// Option configures a Wizard.
type Option func(*Wizard)

// WithToaster sets the notification sink for the success toast.
func WithToaster(t Toaster) Option {
	return func(w *Wizard) { w.toaster = t }
}

// WithOnClose sets the revalidation callback invoked by Close.
func WithOnClose(fn func()) Option {
	return func(w *Wizard) { w.onClose = fn }
}

// WithOnListingError sets the observer invoked once per failed submission.
func WithOnListingError(fn func(error)) Option {
	return func(w *Wizard) { w.onListingError = fn }
}

// WithOnListed sets the callback invoked after a listing is confirmed.
func WithOnListed(fn func(context.Context, Receipt)) Option {
	return func(w *Wizard) { w.onListed = fn }
}

// WithOnStateChange sets a callback receiving a snapshot after every
// transition. It is called without the wizard lock held.
func WithOnStateChange(fn func(State)) Option {
	return func(w *Wizard) { w.onStateChange = fn }
}

// WithClock overrides time.Now, used to compute the expiration timestamp.
func WithClock(now func() time.Time) Option {
	return func(w *Wizard) { w.now = now }
}

// WithLogger sets the wizard logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Wizard) { w.logger = logger }
}

// Wizard is the listing state machine. It is safe for concurrent use; the
// external calls of a submission run without the lock held so State can be
// observed while a transaction is pending.
type Wizard struct {
	mu    sync.Mutex
	item  Item
	deps  Deps
	state State

	toaster        Toaster
	onClose        func()
	onListingError func(error)
	onListed       func(context.Context, Receipt)
	onStateChange  func(State)
	now            func() time.Time
	logger         *slog.Logger
}

// NewWizard returns a wizard at StepSelectMarkets with an empty draft.
func NewWizard(item Item, deps Deps, opts ...Option) *Wizard {
	w := &Wizard{
		item:   item,
		deps:   deps,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(slog.String("component", "listing_wizard"))
	w.state = initialState(item)
	return w
}

func initialState(item Item) State {
	return State{
		Step: domain.StepSelectMarkets,
		Draft: domain.ListingDraft{
			Price:      decimal.Zero,
			Expiration: DefaultExpiration(),
			TokenID:    item.TokenID,
			Collection: item.Collection,
		},
	}
}

// Item returns the token this wizard lists.
func (w *Wizard) Item() Item { return w.item }

// State returns a snapshot of the wizard.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Next advances from SelectMarkets to SetPrice.
func (w *Wizard) Next() error {
	w.mu.Lock()
	if w.state.Loading {
		w.mu.Unlock()
		return domain.ErrSubmissionInFlight
	}
	if w.state.Step != domain.StepSelectMarkets {
		step := w.state.Step
		w.mu.Unlock()
		return fmt.Errorf("listing: next from %s: %w", step, domain.ErrInvalidTransition)
	}
	w.state.Step = domain.StepSetPrice
	w.mu.Unlock()

	w.emit()
	return nil
}

// SetPrice records the price input. A non-positive or unparsable input is
// accepted as zero and reported through the inline alert; it is not an error.
func (w *Wizard) SetPrice(input string) error {
	w.mu.Lock()
	if w.state.Loading {
		w.mu.Unlock()
		return domain.ErrSubmissionInFlight
	}
	if w.state.Step != domain.StepSetPrice {
		step := w.state.Step
		w.mu.Unlock()
		return fmt.Errorf("listing: set price at %s: %w", step, domain.ErrInvalidTransition)
	}

	price, err := ParsePrice(input)
	switch {
	case err != nil:
		w.state.Draft.Price = decimal.Zero
		w.state.Alert = AlertPriceNotPositive
	case !price.GreaterThan(decimal.Zero):
		w.state.Draft.Price = price
		w.state.Alert = AlertPriceNotPositive
	default:
		w.state.Draft.Price = price
		w.state.Alert = ""
	}
	w.mu.Unlock()

	w.emit()
	return nil
}

// SetExpiration selects an option from the expiration table by value.
// Unknown values leave the current selection untouched.
func (w *Wizard) SetExpiration(value string) error {
	opt, ok := LookupExpiration(value)
	if !ok {
		return fmt.Errorf("listing: expiration %q: %w", value, domain.ErrInvalidExpiration)
	}

	w.mu.Lock()
	if w.state.Loading {
		w.mu.Unlock()
		return domain.ErrSubmissionInFlight
	}
	w.state.Draft.Expiration = opt
	w.mu.Unlock()

	w.emit()
	return nil
}

// Edit returns from ListItem to SetPrice and clears the captured error.
func (w *Wizard) Edit() error {
	w.mu.Lock()
	if w.state.Loading {
		w.mu.Unlock()
		return domain.ErrSubmissionInFlight
	}
	if w.state.Step != domain.StepListItem {
		step := w.state.Step
		w.mu.Unlock()
		return fmt.Errorf("listing: edit at %s: %w", step, domain.ErrInvalidTransition)
	}
	w.state.Step = domain.StepSetPrice
	w.state.Outcome.Err = nil
	w.mu.Unlock()

	w.emit()
	return nil
}

// Close resets the draft, returns to SelectMarkets and invokes the
// revalidation callback. It is refused while a submission is in flight.
func (w *Wizard) Close() error {
	w.mu.Lock()
	if w.state.Loading {
		w.mu.Unlock()
		return domain.ErrSubmissionInFlight
	}
	w.state = initialState(w.item)
	onClose := w.onClose
	w.mu.Unlock()

	if onClose != nil {
		onClose()
	}
	w.emit()
	return nil
}

// Do dispatches a button action to its handler.
func (w *Wizard) Do(ctx context.Context, action Action) error {
	switch action {
	case ActionNext:
		return w.Next()
	case ActionSubmit, ActionRetry:
		return w.Submit(ctx)
	case ActionEdit:
		return w.Edit()
	case ActionClose:
		return w.Close()
	default:
		return fmt.Errorf("listing: action %q: %w", action, domain.ErrInvalidTransition)
	}
}

func (w *Wizard) emit() {
	if w.onStateChange == nil {
		return
	}
	w.onStateChange(w.State())
}
