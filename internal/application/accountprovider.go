package application

import (
	"context"
	"sync"

	"github.com/ericfisherdev/ghmirror/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Identity = (*AccountProvider)(nil)

// AccountProvider implements the Identity port over a mutex-protected account
// list, allowing credential updates to take effect without restarting the
// application. Order is preserved; the sync service tries accounts first to
// last.
type AccountProvider struct {
	mu       sync.RWMutex
	accounts []driven.Account
}

// NewAccountProvider creates a provider with the given initial accounts.
// accounts may be empty when no credentials are available at startup.
func NewAccountProvider(accounts []driven.Account) *AccountProvider {
	return &AccountProvider{accounts: accounts}
}

// LoggedInAccounts returns the current accounts in fallback order.
func (p *AccountProvider) LoggedInAccounts(_ context.Context) ([]driven.Account, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]driven.Account, len(p.accounts))
	copy(out, p.accounts)
	return out, nil
}

// Replace swaps the account list. The next sync pass sees the new accounts.
func (p *AccountProvider) Replace(accounts []driven.Account) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts = accounts
}

// HasAccounts reports whether any account is currently held.
func (p *AccountProvider) HasAccounts() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.accounts) > 0
}
