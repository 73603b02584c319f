package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/ericfisherdev/ghmirror/internal/domain/remote"
)

// setupTestStore creates a named shared in-memory SQLite database for testing.
// Writer and reader connections share the same in-memory database via
// cache=shared. A unique name derived from t.Name() ensures isolation between
// parallel tests.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	// Percent-encode the test name so it's a safe SQLite URI filename component
	// and cannot be misinterpreted as query parameters in the "file:%s?..." DSN.
	safeName := url.PathEscape(t.Name())
	// WAL mode is not applicable to in-memory databases; omit journal_mode pragma.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)",
		safeName,
	)

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("create test store writer: %v", err)
	}
	writer.SetMaxOpenConns(1)
	if err := writer.PingContext(context.Background()); err != nil {
		_ = writer.Close()
		t.Fatalf("ping test store writer: %v", err)
	}

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = writer.Close()
		t.Fatalf("create test store reader: %v", err)
	}
	reader.SetMaxOpenConns(4)
	if err := reader.PingContext(context.Background()); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		t.Fatalf("ping test store reader: %v", err)
	}

	store := &Store{Writer: writer, Reader: reader, path: dsn}

	if err := applySchema(store.Writer); err != nil {
		_ = store.Close()
		t.Fatalf("apply schema: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })

	return store
}

// setupTestRepos wires a Repos bundle directly onto the test store's writer.
func setupTestRepos(t *testing.T) *Repos {
	t.Helper()
	return NewRepos(setupTestStore(t).Writer)
}

func makeRemoteUser(id int64, login string) remote.User {
	return remote.User{
		InternalID: id,
		Login:      login,
		AvatarURL:  fmt.Sprintf("https://avatars.example.com/u/%d", id),
		Type:       "User",
	}
}

func makeRemoteRepo(id int64, owner, name string) remote.Repository {
	return remote.Repository{
		InternalID:    id,
		Name:          name,
		Owner:         makeRemoteUser(id*100, owner),
		DefaultBranch: "main",
		HTMLURL:       fmt.Sprintf("https://github.com/%s/%s", owner, name),
		CloneURL:      fmt.Sprintf("https://github.com/%s/%s.git", owner, name),
		CreatedAt:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:     time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
		PushedAt:      time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
	}
}

func makeRemoteIssue(id int64, number int, title string) remote.Issue {
	return remote.Issue{
		InternalID: id,
		Number:     number,
		Title:      title,
		State:      "open",
		HTMLURL:    fmt.Sprintf("https://github.com/octocat/hello-world/issues/%d", number),
		Author:     makeRemoteUser(id*10, fmt.Sprintf("author%d", id)),
		CreatedAt:  time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		UpdatedAt:  time.Date(2026, 1, 6, 9, 0, 0, 0, time.UTC),
	}
}

func makeRemotePR(id int64, number int, title, headSHA string) remote.PullRequest {
	return remote.PullRequest{
		InternalID:   id,
		Number:       number,
		Title:        title,
		State:        "open",
		HTMLURL:      fmt.Sprintf("https://github.com/octocat/hello-world/pull/%d", number),
		HeadSHA:      headSHA,
		SourceBranch: "feature",
		TargetBranch: "main",
		Author:       makeRemoteUser(id*10, fmt.Sprintf("author%d", id)),
		CreatedAt:    time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2026, 1, 6, 9, 0, 0, 0, time.UTC),
	}
}
