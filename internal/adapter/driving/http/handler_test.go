package httphandler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ericfisherdev/ghmirror/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/ghmirror/internal/adapter/driving/http"
	"github.com/ericfisherdev/ghmirror/internal/application"
	"github.com/ericfisherdev/ghmirror/internal/domain/model"
	"github.com/ericfisherdev/ghmirror/internal/domain/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRefresher records manual sync requests.
type fakeRefresher struct {
	refs []*application.RepoRef
	err  error
}

func (f *fakeRefresher) Refresh(_ context.Context, repo *application.RepoRef) error {
	f.refs = append(f.refs, repo)
	return f.err
}

func setupHandler(t *testing.T, refresher httphandler.Refresher) (http.Handler, *sqlite.Store) {
	t.Helper()

	store, err := sqlite.Create(context.Background(), filepath.Join(t.TempDir(), "cache.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := httphandler.NewHandler(store, refresher, logger)
	return httphandler.NewServeMux(h, logger), store
}

// seedRepository writes one repository with an issue and a pull request and
// returns the local repository row.
func seedRepository(t *testing.T, store *sqlite.Store) *model.Repository {
	t.Helper()
	ctx := context.Background()
	repos := sqlite.NewRepos(store.Writer)

	repo, err := repos.Repositories.GetOrCreateOrUpdate(ctx, remote.Repository{
		InternalID:    7,
		Name:          "hello-world",
		Owner:         remote.User{InternalID: 42, Login: "octocat", Type: "User"},
		DefaultBranch: "main",
		HTMLURL:       "https://github.com/octocat/hello-world",
		PushedAt:      time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	_, err = repos.Issues.GetOrCreateOrUpdate(ctx, remote.Issue{
		InternalID: 100, Number: 1, Title: "an issue", State: "open",
		Author: remote.User{InternalID: 50, Login: "alice"},
	}, repo.ID)
	require.NoError(t, err)

	pr, err := repos.PullRequests.GetOrCreateOrUpdate(ctx, remote.PullRequest{
		InternalID: 200, Number: 5, Title: "a change", State: "open",
		HeadSHA: "abc123", SourceBranch: "feature", TargetBranch: "main",
		Author: remote.User{InternalID: 50, Login: "alice"},
	}, repo.ID)
	require.NoError(t, err)

	_, err = repos.Statuses.InsertPullRequestStatus(ctx, model.PullRequestStatus{
		PullRequestID: pr.ID,
		HeadSHA:       "abc123",
		StatusID:      model.CheckStatusCompleted,
		ConclusionID:  model.CheckConclusionSuccess,
	})
	require.NoError(t, err)

	return repo
}

func seedNotification(t *testing.T, store *sqlite.Store, typeID model.NotificationType, identifier string) *model.Notification {
	t.Helper()

	n, err := sqlite.NewRepos(store.Writer).Notifications.Insert(context.Background(), model.Notification{
		TypeID:     typeID,
		Title:      "Checks failed on octocat/hello-world #5",
		Identifier: identifier,
		Result:     "failure",
	})
	require.NoError(t, err)
	return n
}

func doRequest(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestListRepositories_Empty(t *testing.T) {
	handler, _ := setupHandler(t, nil)

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/repositories", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestListRepositories(t *testing.T) {
	handler, store := setupHandler(t, nil)
	seedRepository(t, store)

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/repositories", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []httphandler.RepositoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "octocat/hello-world", got[0].FullName)
	assert.Equal(t, "octocat", got[0].Owner)
	assert.Equal(t, "main", got[0].DefaultBranch)
}

func TestGetRepository(t *testing.T) {
	handler, store := setupHandler(t, nil)
	seedRepository(t, store)

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/repositories/octocat/hello-world", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got httphandler.RepositoryDetailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))

	assert.Equal(t, "octocat/hello-world", got.FullName)
	require.Len(t, got.Issues, 1)
	assert.Equal(t, "an issue", got.Issues[0].Title)

	require.Len(t, got.PullRequests, 1)
	assert.Equal(t, 5, got.PullRequests[0].Number)
	assert.Equal(t, "completed", got.PullRequests[0].CIStatus)
	assert.Equal(t, "success", got.PullRequests[0].CIConclusion)
}

func TestGetRepository_NotFound(t *testing.T) {
	handler, _ := setupHandler(t, nil)

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/repositories/octocat/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListDevelopers(t *testing.T) {
	handler, store := setupHandler(t, nil)

	ctx := context.Background()
	repos := sqlite.NewRepos(store.Writer)
	user, err := repos.Users.GetOrCreateOrUpdate(ctx, remote.User{InternalID: 50, Login: "alice", Type: "User"})
	require.NoError(t, err)
	require.NoError(t, repos.Users.SetDeveloper(ctx, user.ID, true))

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/developers", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []httphandler.DeveloperResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0].Login)
}

func TestListNotifications(t *testing.T) {
	handler, store := setupHandler(t, nil)
	seedRepository(t, store)
	fresh := seedNotification(t, store, model.NotificationTypeCheckRunFailed, "sha-a")
	toasted := seedNotification(t, store, model.NotificationTypeCheckRunFailed, "sha-b")
	require.NoError(t, sqlite.NewRepos(store.Writer).Notifications.MarkToasted(context.Background(), toasted.ID))

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/notifications", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []httphandler.NotificationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1, "toasted notifications are hidden by default")
	assert.Equal(t, fresh.ID, got[0].ID)
	assert.Equal(t, "check_run_failed", got[0].Type)

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/notifications?include_toasted=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2)
}

func TestListNotifications_SinceFilter(t *testing.T) {
	handler, store := setupHandler(t, nil)
	seedRepository(t, store)
	seedNotification(t, store, model.NotificationTypeCheckRunFailed, "sha-a")

	future := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	rec := doRequest(t, handler, http.MethodGet, "/api/v1/notifications?since="+future, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/notifications?since=not-a-time", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestToastNotification(t *testing.T) {
	handler, store := setupHandler(t, nil)
	seedRepository(t, store)
	n := seedNotification(t, store, model.NotificationTypeCheckRunFailed, "sha-a")

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/notifications/"+strconv.FormatInt(n.ID, 10)+"/toast", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/notifications", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestToastNotification_Errors(t *testing.T) {
	handler, _ := setupHandler(t, nil)

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/notifications/999/toast", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, handler, http.MethodPost, "/api/v1/notifications/abc/toast", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerSync_All(t *testing.T) {
	refresher := &fakeRefresher{}
	handler, _ := setupHandler(t, refresher)

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/sync", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	require.Len(t, refresher.refs, 1)
	assert.Nil(t, refresher.refs[0])
}

func TestTriggerSync_SingleRepository(t *testing.T) {
	refresher := &fakeRefresher{}
	handler, _ := setupHandler(t, refresher)

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/sync",
		`{"owner":"octocat","name":"hello-world"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	require.Len(t, refresher.refs, 1)
	require.NotNil(t, refresher.refs[0])
	assert.Equal(t, "octocat", refresher.refs[0].Owner)
	assert.Equal(t, "hello-world", refresher.refs[0].Name)
}

func TestTriggerSync_Errors(t *testing.T) {
	refresher := &fakeRefresher{err: errors.New("rate limited")}
	handler, _ := setupHandler(t, refresher)

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/sync", `{"owner":"octocat"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, handler, http.MethodPost, "/api/v1/sync", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, handler, http.MethodPost, "/api/v1/sync", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestTriggerSync_Unavailable(t *testing.T) {
	handler, _ := setupHandler(t, nil)

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/sync", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth(t *testing.T) {
	handler, store := setupHandler(t, nil)

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got httphandler.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ok", got.Status)
	assert.Empty(t, got.LastUpdated)

	require.NoError(t, sqlite.NewRepos(store.Writer).Meta.StampLastUpdated(context.Background(), time.Now().UTC()))

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/health", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.NotEmpty(t, got.LastUpdated)
}
