package checkout

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/valleygoods/storefront/internal/cart"
	"github.com/valleygoods/storefront/internal/commit"
	"github.com/valleygoods/storefront/internal/model"
	"github.com/valleygoods/storefront/internal/obs"
	"github.com/valleygoods/storefront/internal/payment"
)

// ValidationError means a step cannot advance. It is surfaced inline and no
// network call is issued.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// ErrNotAtPayment is returned when payment is submitted off the payment step.
var ErrNotAtPayment = errors.New("checkout: not at the payment step")

// Orchestrator gates step progression and drives payment-intent creation,
// confirmation, and the order commit handoff.
type Orchestrator struct {
	Gateway   payment.Gateway
	Sequencer *commit.Sequencer
	TaxRate   decimal.Decimal
	Currency  string
}

// Totals derives the amounts for the current cart: subtotal, attached
// shipping costs, and the flat tax on the subtotal.
func (o *Orchestrator) Totals(c *cart.Cart) commit.Totals {
	sub := c.Subtotal()
	ship := c.ShippingTotal()
	tax := sub.Mul(o.TaxRate).Round(2)
	return commit.Totals{
		Subtotal:      sub,
		ShippingTotal: ship,
		Tax:           tax,
		Total:         sub.Add(ship).Add(tax),
	}
}

// SetIdentity captures the customer identity fields on the session.
func (o *Orchestrator) SetIdentity(sess *Session, ident model.CustomerIdentity) {
	sess.mu.Lock()
	sess.Identity = ident
	sess.mu.Unlock()
}

// Advance moves the session one step forward after its validity gate
// passes. Entering the payment step creates the payment intent exactly once
// per session; an existing client secret suppresses a second creation.
func (o *Orchestrator) Advance(ctx context.Context, sess *Session, c *cart.Cart) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	switch sess.Step {
	case StepIdentity:
		if !sess.Identity.Complete() {
			return &ValidationError{Reason: "email, first name, last name, and phone are required"}
		}
		sess.Step = StepFulfillment
	case StepFulfillment:
		if c.IsEmpty() {
			return &ValidationError{Reason: "cart is empty"}
		}
		if pending := c.ItemsNeedingShippingCalculation(); len(pending) > 0 {
			return &ValidationError{Reason: "shipping cost has not been calculated for every shipped item"}
		}
		if err := o.ensureIntent(ctx, sess, c); err != nil {
			return err
		}
		sess.Step = StepPayment
	case StepPayment:
		// Final step; nothing to advance to.
	}
	sess.LastError = ""
	return nil
}

// Retreat moves the session one step back. The payment intent is kept so
// returning to the payment step does not create a second one.
func (o *Orchestrator) Retreat(sess *Session) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.Step > StepIdentity {
		sess.Step--
	}
}

func (o *Orchestrator) ensureIntent(ctx context.Context, sess *Session, c *cart.Cart) error {
	if sess.ClientSecret != "" {
		return nil
	}
	t := o.Totals(c)
	amountMinor := t.Total.Shift(2).Round(0).IntPart()
	in, err := o.Gateway.CreatePaymentIntent(ctx, amountMinor, o.Currency, map[string]string{
		"session_id": sess.ID,
		"subtotal":   t.Subtotal.StringFixed(2),
		"shipping":   t.ShippingTotal.StringFixed(2),
		"tax":        t.Tax.StringFixed(2),
	})
	if err != nil {
		return err
	}
	sess.IntentID = in.ID
	sess.ClientSecret = in.ClientSecret
	obs.Logger.Info("payment_intent_created", "session_id", sess.ID, "intent_id", in.ID, "amount_minor", amountMinor)
	return nil
}

// SubmitPayment confirms the session's payment intent and, on success,
// hands off to the commit sequencer. A decline keeps the session on the
// payment step with the same intent, so the gateway can retry it; the
// decline message is surfaced verbatim. The caller clears the cart and
// drops the session only when a Result comes back. The session lock is held
// for the whole call, and a session that has already committed rejects a
// second submission, so a double-clicked pay cannot create two orders.
func (o *Orchestrator) SubmitPayment(ctx context.Context, sess *Session, c *cart.Cart) (commit.Result, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.committed || sess.Step != StepPayment || sess.ClientSecret == "" {
		return commit.Result{}, ErrNotAtPayment
	}
	conf, err := o.Gateway.ConfirmPayment(ctx, sess.ClientSecret)
	if err != nil {
		var decline *payment.DeclinedError
		if errors.As(err, &decline) {
			sess.LastError = decline.Message
		} else {
			sess.LastError = err.Error()
		}
		obs.Logger.Warn("payment_confirm_failed", "session_id", sess.ID, "intent_id", sess.IntentID, "error", err)
		return commit.Result{}, err
	}
	res, err := o.Sequencer.Commit(ctx, conf.ID, c, sess.Identity, o.Totals(c))
	if err != nil {
		sess.LastError = err.Error()
		return commit.Result{}, err
	}
	sess.committed = true
	return res, nil
}
