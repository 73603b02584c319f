package driven

import "context"

// Account is one logged-in developer credential able to yield an
// authenticated API client.
type Account struct {
	Login  string
	Client GitHubClient
}

// Identity is the driven port for the credential provider. It reports which
// accounts are currently logged in, in fallback order.
type Identity interface {
	LoggedInAccounts(ctx context.Context) ([]Account, error)
}
