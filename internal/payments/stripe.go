package payments

import (
	"context"
	"sync"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
)

// StripeFares holds a manual-capture PaymentIntent per request at claim
// time and captures it on completion. Fare is flagfall plus a per-km rate,
// in the smallest currency unit.
type StripeFares struct {
	Currency  string
	BaseFare  int64
	PerKmFare int64

	mu      sync.Mutex
	intents map[string]string // request id -> payment intent id
}

// NewStripeFares initializes the stripe client with the given API key.
func NewStripeFares(apiKey, currency string) *StripeFares {
	stripe.Key = apiKey
	return &StripeFares{
		Currency:  currency,
		BaseFare:  500,
		PerKmFare: 400,
		intents:   make(map[string]string),
	}
}

func (s *StripeFares) amount(distanceKm float64) int64 {
	return s.BaseFare + int64(distanceKm*float64(s.PerKmFare))
}

// Hold creates a PaymentIntent with capture_method=manual for the
// estimated fare.
func (s *StripeFares) Hold(ctx context.Context, requestID string, distanceKm float64) error {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(s.amount(distanceKm)),
		Currency: stripe.String(s.Currency),
	}
	params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	pi, err := paymentintent.New(params)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.intents[requestID] = pi.ID
	s.mu.Unlock()
	return nil
}

// Capture finalizes the hold placed for the request. Unknown requests are
// a no-op so completion never fails on a missing hold.
func (s *StripeFares) Capture(ctx context.Context, requestID string) error {
	s.mu.Lock()
	id, ok := s.intents[requestID]
	delete(s.intents, requestID)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	_, err := paymentintent.Capture(id, nil)
	return err
}
