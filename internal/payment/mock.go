package payment

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// MockGateway is the deterministic stand-in used when no stripe credentials
// are configured, and by tests. Handles it issued confirm as succeeded unless
// an outcome was forced with SetStatus; unknown handles fail.
type MockGateway struct {
	mu       sync.Mutex
	statuses map[string]Status
	failOps  bool
}

func NewMockGateway() *MockGateway {
	return &MockGateway{statuses: make(map[string]Status)}
}

// FailNextOps makes every gateway call return an error until reset. Tests
// use it to exercise the recoverable-error path.
func (g *MockGateway) FailNextOps(fail bool) {
	g.mu.Lock()
	g.failOps = fail
	g.mu.Unlock()
}

// SetStatus forces the confirm outcome for a handle.
func (g *MockGateway) SetStatus(handleID string, status Status) {
	g.mu.Lock()
	g.statuses[handleID] = status
	g.mu.Unlock()
}

func (g *MockGateway) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failOps {
		return nil, errors.New("mock gateway unavailable")
	}

	id := "pi_mock_" + uuid.NewString()
	g.statuses[id] = StatusSucceeded
	return &Intent{ID: id, ClientSecret: id + "_secret"}, nil
}

func (g *MockGateway) CreateHostedSession(ctx context.Context, amountCents int64, currency, successURL, cancelURL string, metadata map[string]string) (*Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failOps {
		return nil, errors.New("mock gateway unavailable")
	}

	id := "cs_mock_" + uuid.NewString()
	g.statuses[id] = StatusSucceeded
	return &Session{ID: id, RedirectURL: "https://checkout.example.com/pay/" + id}, nil
}

func (g *MockGateway) Confirm(ctx context.Context, handleID string) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failOps {
		return StatusFailed, errors.New("mock gateway unavailable")
	}

	status, ok := g.statuses[handleID]
	if !ok {
		return StatusFailed, nil
	}
	return status, nil
}

func (g *MockGateway) Cancel(ctx context.Context, handleID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failOps {
		return errors.New("mock gateway unavailable")
	}

	delete(g.statuses, handleID)
	return nil
}

var _ Gateway = (*MockGateway)(nil)
