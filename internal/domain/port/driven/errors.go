package driven

import "errors"

// Error kinds distinguished by the sync orchestrator. Adapters wrap these
// sentinels so callers can pattern-match with errors.Is instead of catching
// adapter-specific types.
var (
	// ErrNotFound indicates the remote resource does not exist or is
	// invisible to the requesting credential. Expected during credential
	// fallback; never fatal on its own.
	ErrNotFound = errors.New("resource not found")

	// ErrForbidden indicates the requesting credential cannot see the
	// resource (commonly SAML-protected orgs or private repositories).
	// Expected during credential fallback; never fatal on its own.
	ErrForbidden = errors.New("access forbidden")

	// ErrRateLimited indicates the remote API rate limit is exhausted.
	// Fatal for the whole operation: the sync pass aborts and rolls back
	// without trying further candidates.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrRepositoryNotAccessible indicates no candidate credential could
	// see the repository.
	ErrRepositoryNotAccessible = errors.New("repository not accessible by any available account")

	// ErrStoreInaccessible indicates the local store could not be opened or
	// was lost. Fatal for the current operation; the caller may retry.
	ErrStoreInaccessible = errors.New("data store inaccessible")

	// ErrInvalidRepoName indicates a malformed owner/repo full name,
	// rejected before any network or store work.
	ErrInvalidRepoName = errors.New("invalid repository name: expected owner/repo")
)
