// Package httphandler is the HTTP driving adapter exposing the cached data
// to local UI widgets and tooling.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/ghmirror/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/ghmirror/internal/application"
)

// Refresher triggers a sync pass outside the regular interval.
type Refresher interface {
	Refresh(ctx context.Context, repo *application.RepoRef) error
}

// Handler serves the REST API over the local cache.
type Handler struct {
	store     *sqlite.Store
	refresher Refresher
	logger    *slog.Logger
}

// NewHandler creates a Handler. refresher may be nil when manual sync is
// unavailable, for example in one-shot mode.
func NewHandler(store *sqlite.Store, refresher Refresher, logger *slog.Logger) *Handler {
	return &Handler{
		store:     store,
		refresher: refresher,
		logger:    logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/repositories", h.ListRepositories)
	mux.HandleFunc("GET /api/v1/repositories/{owner}/{name}", h.GetRepository)
	mux.HandleFunc("GET /api/v1/developers", h.ListDevelopers)
	mux.HandleFunc("GET /api/v1/notifications", h.ListNotifications)
	mux.HandleFunc("POST /api/v1/notifications/{id}/toast", h.ToastNotification)
	mux.HandleFunc("POST /api/v1/sync", h.TriggerSync)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// ListRepositories returns every cached repository.
func (h *Handler) ListRepositories(w http.ResponseWriter, r *http.Request) {
	repos := sqlite.NewRepos(h.store.Reader)

	all, err := repos.Repositories.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list repositories", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]RepositoryResponse, 0, len(all))
	for _, repo := range all {
		owner, err := repos.Users.GetByID(r.Context(), repo.OwnerID)
		if err != nil {
			h.logger.Error("failed to resolve repository owner", "repository", repo.Name, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		login := ""
		if owner != nil {
			login = owner.Login
		}
		resp = append(resp, toRepositoryResponse(repo, login))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetRepository returns one repository with its cached issues and pull
// requests. Each pull request carries its newest status snapshot.
func (h *Handler) GetRepository(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("owner")
	name := r.PathValue("name")

	repos := sqlite.NewRepos(h.store.Reader)

	repo, err := repos.Repositories.GetByOwnerAndName(r.Context(), owner, name)
	if err != nil {
		h.logger.Error("failed to get repository", "repo", owner+"/"+name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if repo == nil {
		writeError(w, http.StatusNotFound, "repository not found")
		return
	}

	issues, err := repos.Issues.ListForRepository(r.Context(), repo.ID)
	if err != nil {
		h.logger.Error("failed to list issues", "repo", owner+"/"+name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	prs, err := repos.PullRequests.ListForRepository(r.Context(), repo.ID)
	if err != nil {
		h.logger.Error("failed to list pull requests", "repo", owner+"/"+name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := RepositoryDetailResponse{
		RepositoryResponse: toRepositoryResponse(*repo, owner),
		Issues:             make([]IssueResponse, 0, len(issues)),
		PullRequests:       make([]PullRequestResponse, 0, len(prs)),
	}

	for _, issue := range issues {
		resp.Issues = append(resp.Issues, toIssueResponse(issue))
	}

	for _, pr := range prs {
		latest, err := repos.Statuses.GetLatestForPullRequest(r.Context(), pr.ID)
		if err != nil {
			h.logger.Error("failed to get latest status", "repo", owner+"/"+name, "number", pr.Number, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		resp.PullRequests = append(resp.PullRequests, toPullRequestResponse(pr, latest))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListDevelopers returns the accounts flagged as logged-in developers.
func (h *Handler) ListDevelopers(w http.ResponseWriter, r *http.Request) {
	developers, err := sqlite.NewRepos(h.store.Reader).Users.ListDevelopers(r.Context())
	if err != nil {
		h.logger.Error("failed to list developers", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]DeveloperResponse, 0, len(developers))
	for _, dev := range developers {
		resp = append(resp, toDeveloperResponse(dev))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListNotifications returns notifications created since the given time.
// Query parameters: since (RFC 3339, default: beginning of the retention
// window) and include_toasted (default false).
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since: expected RFC 3339 timestamp")
			return
		}
		since = parsed
	}

	includeToasted := r.URL.Query().Get("include_toasted") == "true"

	notifications, err := sqlite.NewRepos(h.store.Reader).Notifications.List(r.Context(), since, includeToasted)
	if err != nil {
		h.logger.Error("failed to list notifications", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		resp = append(resp, toNotificationResponse(n))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ToastNotification marks a notification as shown.
func (h *Handler) ToastNotification(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	if err := sqlite.NewRepos(h.store.Writer).Notifications.MarkToasted(r.Context(), id); err != nil {
		if errors.Is(err, sqlite.ErrNoSuchRow) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		h.logger.Error("failed to mark notification toasted", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TriggerSync runs a sync pass immediately. An empty body syncs every
// configured repository; a body naming a repository syncs just that one.
// The response is sent after the pass completes.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if h.refresher == nil {
		writeError(w, http.StatusServiceUnavailable, "sync unavailable")
		return
	}

	var repo *application.RepoRef

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(body) > 0 {
		var req SyncRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Owner != "" || req.Name != "" {
			if req.Owner == "" || req.Name == "" {
				writeError(w, http.StatusBadRequest, "owner and name must both be set")
				return
			}
			repo = &application.RepoRef{Owner: req.Owner, Name: req.Name}
		}
	}

	if err := h.refresher.Refresh(r.Context(), repo); err != nil {
		h.logger.Error("manual sync failed", "error", err)
		writeError(w, http.StatusBadGateway, "sync failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Health returns a simple health check response including when the cache was
// last refreshed.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	}

	last, err := sqlite.NewRepos(h.store.Reader).Meta.LastUpdated(r.Context())
	if err != nil {
		h.logger.Warn("failed to read last update time", "error", err)
	} else if !last.IsZero() {
		resp.LastUpdated = last.UTC().Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, resp)
}
