// Package payment defines the payment gateway contract and an in-process
// implementation for the simulator and tests.
package payment

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownIntent is returned when a client secret matches no intent.
var ErrUnknownIntent = errors.New("payment: unknown payment intent")

// DeclinedError carries the gateway's decline message, which is surfaced to
// the shopper verbatim.
type DeclinedError struct {
	Message string
}

func (e *DeclinedError) Error() string { return e.Message }

// Intent is a created payment intent.
type Intent struct {
	ID           string
	ClientSecret string
}

// Confirmation is the result of a successful payment confirmation.
type Confirmation struct {
	Status string
	ID     string
}

// Gateway is the payment collaborator contract.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (Intent, error)
	ConfirmPayment(ctx context.Context, clientSecret string) (Confirmation, error)
}

type memIntent struct {
	id          string
	amountMinor int64
	currency    string
	metadata    map[string]string
	succeeded   bool
}

// Memory is an in-process gateway. Confirmations succeed unless a decline
// has been injected; confirming an already-succeeded intent is idempotent.
type Memory struct {
	mu         sync.Mutex
	bySecret   map[string]*memIntent
	declineMsg string
	created    int
}

// NewMemory returns an empty in-memory gateway.
func NewMemory() *Memory {
	return &Memory{bySecret: make(map[string]*memIntent)}
}

// DeclineNext makes the next ConfirmPayment call fail with msg, then clears.
func (m *Memory) DeclineNext(msg string) {
	m.mu.Lock()
	m.declineMsg = msg
	m.mu.Unlock()
}

// Created returns how many intents were created.
func (m *Memory) Created() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created
}

// CreatePaymentIntent implements Gateway.
func (m *Memory) CreatePaymentIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (Intent, error) {
	if err := ctx.Err(); err != nil {
		return Intent{}, err
	}
	id := "pi_" + uuid.NewString()
	secret := id + "_secret_" + uuid.NewString()
	m.mu.Lock()
	m.bySecret[secret] = &memIntent{id: id, amountMinor: amountMinor, currency: currency, metadata: metadata}
	m.created++
	m.mu.Unlock()
	return Intent{ID: id, ClientSecret: secret}, nil
}

// ConfirmPayment implements Gateway.
func (m *Memory) ConfirmPayment(ctx context.Context, clientSecret string) (Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return Confirmation{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.bySecret[clientSecret]
	if !ok {
		return Confirmation{}, ErrUnknownIntent
	}
	if in.succeeded {
		return Confirmation{Status: "succeeded", ID: in.id}, nil
	}
	if m.declineMsg != "" {
		msg := m.declineMsg
		m.declineMsg = ""
		return Confirmation{}, &DeclinedError{Message: msg}
	}
	in.succeeded = true
	return Confirmation{Status: "succeeded", ID: in.id}, nil
}
