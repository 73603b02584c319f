package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Querier is satisfied by both *sql.DB and *sql.Tx. Entity repositories are
// bound to a Querier so a whole sync pass runs against one transaction while
// UI reads run against the reader pool.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repos bundles one repository per entity, all bound to the same Querier.
type Repos struct {
	Users         *UserRepo
	Labels        *LabelRepo
	Repositories  *RepositoryRepo
	Issues        *IssueRepo
	PullRequests  *PullRequestRepo
	Checks        *CheckRepo
	Statuses      *StatusRepo
	Reviews       *ReviewRepo
	Releases      *ReleaseRepo
	Notifications *NotificationRepo
	Searches      *SearchRepo
	Meta          *MetaDataRepo
}

// NewRepos creates the full repository bundle bound to q. Pass a transaction
// from Store.BeginTx for a sync pass, or Store.Reader for query-only access.
func NewRepos(q Querier) *Repos {
	users := NewUserRepo(q)
	labels := NewLabelRepo(q)

	return &Repos{
		Users:         users,
		Labels:        labels,
		Repositories:  NewRepositoryRepo(q, users),
		Issues:        NewIssueRepo(q, users, labels),
		PullRequests:  NewPullRequestRepo(q, users, labels),
		Checks:        NewCheckRepo(q),
		Statuses:      NewStatusRepo(q),
		Reviews:       NewReviewRepo(q, users),
		Releases:      NewReleaseRepo(q),
		Notifications: NewNotificationRepo(q),
		Searches:      NewSearchRepo(q),
		Meta:          NewMetaDataRepo(q),
	}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}

// storedTimeFormat is the canonical datetime column representation: UTC with
// a fixed-width fractional second, so lexicographic comparison in SQL matches
// chronological order. Times must never be bound as time.Time values; the
// driver would store Go's String() form, which neither parseTime nor SQLite's
// datetime functions can read.
const storedTimeFormat = "2006-01-02 15:04:05.000000000"

// formatTime renders a time in the stored column representation.
func formatTime(t time.Time) string {
	return t.UTC().Format(storedTimeFormat)
}

// timeArg converts a time to a bind argument, mapping the zero value to NULL.
func timeArg(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

// nullableTime parses an optional datetime column. NULL maps to the zero time.
func nullableTime(ns sql.NullString, field string) (time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return time.Time{}, nil
	}

	t, err := parseTime(ns.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", field, err)
	}

	return t, nil
}

// boolArg converts a bool to its stored integer form.
func boolArg(b bool) int {
	if b {
		return 1
	}
	return 0
}

// joinIDs renders local surrogate IDs as the comma-joined fingerprint string
// stored in label_ids/assignee_ids columns. IDs are sorted by the caller's
// insertion order; the same remote list always yields the same string.
func joinIDs(ids []int64) string {
	if len(ids) == 0 {
		return ""
	}

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}

	return strings.Join(parts, ",")
}

// splitIDs parses a comma-joined fingerprint string back into surrogate IDs.
func splitIDs(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse id list %q: %w", s, err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}
