package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/ghmirror/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// RepositoryResponse is the JSON representation of a cached repository.
type RepositoryResponse struct {
	ID            int64  `json:"id"`
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Description   string `json:"description"`
	Private       bool   `json:"private"`
	Fork          bool   `json:"fork"`
	DefaultBranch string `json:"default_branch"`
	URL           string `json:"url"`
	PushedAt      string `json:"pushed_at"`
	CachedAt      string `json:"cached_at"`
}

// RepositoryDetailResponse is a repository with its cached issues and pull
// requests.
type RepositoryDetailResponse struct {
	RepositoryResponse
	Issues       []IssueResponse       `json:"issues"`
	PullRequests []PullRequestResponse `json:"pull_requests"`
}

// IssueResponse is the JSON representation of a cached issue.
type IssueResponse struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	State     string `json:"state"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// PullRequestResponse is the JSON representation of a cached pull request.
// CIStatus, CIConclusion, and CommitState come from the newest status
// snapshot and are empty when the pull request has none.
type PullRequestResponse struct {
	Number       int    `json:"number"`
	Title        string `json:"title"`
	State        string `json:"state"`
	Draft        bool   `json:"draft"`
	HeadSHA      string `json:"head_sha"`
	SourceBranch string `json:"source_branch"`
	TargetBranch string `json:"target_branch"`
	URL          string `json:"url"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	CIStatus     string `json:"ci_status,omitempty"`
	CIConclusion string `json:"ci_conclusion,omitempty"`
	CommitState  string `json:"commit_state,omitempty"`
}

// DeveloperResponse is the JSON representation of a logged-in developer account.
type DeveloperResponse struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
	Type      string `json:"type"`
}

// NotificationResponse is the JSON representation of a derived notification.
type NotificationResponse struct {
	ID           int64  `json:"id"`
	Type         string `json:"type"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Identifier   string `json:"identifier"`
	Result       string `json:"result"`
	URL          string `json:"url"`
	DetailsURL   string `json:"details_url,omitempty"`
	Toasted      bool   `json:"toasted"`
	TimeOccurred string `json:"time_occurred"`
	TimeCreated  string `json:"time_created"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status      string `json:"status"`
	Time        string `json:"time"`
	LastUpdated string `json:"last_updated,omitempty"`
}

// SyncRequest is the JSON body for the manual sync endpoint. An empty body
// syncs everything.
type SyncRequest struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

func toRepositoryResponse(repo model.Repository, ownerLogin string) RepositoryResponse {
	return RepositoryResponse{
		ID:            repo.ID,
		Owner:         ownerLogin,
		Name:          repo.Name,
		FullName:      ownerLogin + "/" + repo.Name,
		Description:   repo.Description,
		Private:       repo.Private,
		Fork:          repo.Fork,
		DefaultBranch: repo.DefaultBranch,
		URL:           repo.HTMLURL,
		PushedAt:      formatTime(repo.PushedAt),
		CachedAt:      formatTime(repo.TimeUpdated),
	}
}

func toIssueResponse(issue model.Issue) IssueResponse {
	return IssueResponse{
		Number:    issue.Number,
		Title:     issue.Title,
		State:     issue.State,
		URL:       issue.HTMLURL,
		CreatedAt: formatTime(issue.CreatedAt),
		UpdatedAt: formatTime(issue.UpdatedAt),
	}
}

func toPullRequestResponse(pr model.PullRequest, latest *model.PullRequestStatus) PullRequestResponse {
	resp := PullRequestResponse{
		Number:       pr.Number,
		Title:        pr.Title,
		State:        pr.State,
		Draft:        pr.Draft,
		HeadSHA:      pr.HeadSHA,
		SourceBranch: pr.SourceBranch,
		TargetBranch: pr.TargetBranch,
		URL:          pr.HTMLURL,
		CreatedAt:    formatTime(pr.CreatedAt),
		UpdatedAt:    formatTime(pr.UpdatedAt),
	}

	if latest != nil {
		resp.CIStatus = latest.StatusID.String()
		resp.CIConclusion = latest.ConclusionID.String()
		resp.CommitState = latest.StateID.String()
	}

	return resp
}

func toDeveloperResponse(user model.User) DeveloperResponse {
	return DeveloperResponse{
		Login:     user.Login,
		AvatarURL: user.AvatarURL,
		Type:      user.Type,
	}
}

func toNotificationResponse(n model.Notification) NotificationResponse {
	return NotificationResponse{
		ID:           n.ID,
		Type:         n.TypeID.String(),
		Title:        n.Title,
		Description:  n.Description,
		Identifier:   n.Identifier,
		Result:       n.Result,
		URL:          n.HTMLURL,
		DetailsURL:   n.DetailsURL,
		Toasted:      n.ToastState == model.ToastStateShown,
		TimeOccurred: formatTime(n.TimeOccurred),
		TimeCreated:  formatTime(n.TimeCreated),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
