package payment

import "context"

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusPending   Status = "pending"
	StatusFailed    Status = "failed"
)

// Intent is an embedded payment: the wizard stays on-site and the client
// confirms against the secret.
type Intent struct {
	ID           string
	ClientSecret string
}

// Session is a hosted checkout: the client is redirected and the provider
// calls back after payment.
type Session struct {
	ID          string
	RedirectURL string
}

// Gateway abstracts the payment provider. Implementations must report
// failures as errors; an ambiguous provider state maps to StatusPending,
// never to StatusSucceeded.
type Gateway interface {
	CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*Intent, error)
	CreateHostedSession(ctx context.Context, amountCents int64, currency, successURL, cancelURL string, metadata map[string]string) (*Session, error)
	Confirm(ctx context.Context, handleID string) (Status, error)
	Cancel(ctx context.Context, handleID string) error
}
