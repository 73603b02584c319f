package application

import (
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/ghmirror/internal/domain/model"
	"github.com/ericfisherdev/ghmirror/internal/domain/remote"
)

const (
	// notificationStaleWindow bounds how far back a state transition may lie
	// and still produce a notification. Anything older is history the user
	// has long since seen on the website.
	notificationStaleWindow = 30 * 24 * time.Hour

	// excludedAutomationAppID is Dependabot's GitHub App id. Its check
	// suites linger in "queued" forever on many repositories and would
	// otherwise hold every aggregate in a permanently pending state.
	excludedAutomationAppID = 29110

	// notificationRetention is how long notification rows are kept.
	notificationRetention = 30 * 24 * time.Hour

	// searchRetention is how long an unrefreshed saved search survives.
	searchRetention = 7 * 24 * time.Hour

	// statusHistoryRetention is how long old status snapshots are kept. The
	// newest snapshot per pull request always survives.
	statusHistoryRetention = 90 * 24 * time.Hour
)

// shouldNotifyFailure decides whether the new status snapshot warrants a
// failure notification given the previous snapshot (nil when this is the
// first observation). A failure repeated with the same conclusion on the same
// commit does not re-notify.
func shouldNotifyFailure(next model.PullRequestStatus, prev *model.PullRequestStatus, prUpdatedAt, now time.Time) bool {
	if !next.Failed() {
		return false
	}

	if !prUpdatedAt.IsZero() && now.Sub(prUpdatedAt) > notificationStaleWindow {
		return false
	}

	if prev != nil && prev.Failed() &&
		prev.ConclusionID == next.ConclusionID &&
		prev.StateID == next.StateID &&
		strings.EqualFold(prev.HeadSHA, next.HeadSHA) {
		return false
	}

	return true
}

// shouldNotifySuccess decides whether the new status snapshot warrants a
// success notification. Success only notifies as a transition: a pull request
// that was never observed in a non-success state stays quiet.
func shouldNotifySuccess(next model.PullRequestStatus, prev *model.PullRequestStatus, prUpdatedAt, now time.Time) bool {
	if !next.Succeeded() {
		return false
	}

	if !prUpdatedAt.IsZero() && now.Sub(prUpdatedAt) > notificationStaleWindow {
		return false
	}

	if prev == nil {
		return false
	}

	if prev.Succeeded() && strings.EqualFold(prev.HeadSHA, next.HeadSHA) {
		return false
	}

	return true
}

// checkDetailsURL picks the link a check notification should carry: the first
// failed run's details page, then a failed suite, then any suite at all.
// Automation suites are skipped the same way the aggregate state is.
func checkDetailsURL(runs []remote.CheckRun, suites []remote.CheckSuite) string {
	for _, run := range runs {
		conclusion, _ := model.ParseCheckConclusion(run.Conclusion)
		if !conclusion.Failed() {
			continue
		}
		if run.DetailsURL != "" {
			return run.DetailsURL
		}
		if run.HTMLURL != "" {
			return run.HTMLURL
		}
	}

	var fallback string
	for _, suite := range suites {
		if suite.AppID == excludedAutomationAppID || suite.HTMLURL == "" {
			continue
		}
		conclusion, _ := model.ParseCheckConclusion(suite.Conclusion)
		if conclusion.Failed() {
			return suite.HTMLURL
		}
		if fallback == "" {
			fallback = suite.HTMLURL
		}
	}

	return fallback
}

// failureResult names the condition that made the snapshot count as failed.
// The concrete conclusion keeps the dedupe key distinct when the same commit
// fails again for a different reason.
func failureResult(snapshot model.PullRequestStatus) string {
	if snapshot.ConclusionID.Failed() {
		return snapshot.ConclusionID.String()
	}
	return snapshot.StateID.String()
}

// failureNotification builds the notification row for a failed check state.
func failureNotification(repoLabel string, repositoryID int64, pr model.PullRequest, snapshot model.PullRequestStatus) model.Notification {
	return model.Notification{
		TypeID:       model.NotificationTypeCheckRunFailed,
		RepositoryID: repositoryID,
		Title:        fmt.Sprintf("Checks failed on %s #%d", repoLabel, pr.Number),
		Description:  pr.Title,
		Identifier:   snapshot.HeadSHA,
		Result:       failureResult(snapshot),
		HTMLURL:      pr.HTMLURL,
		DetailsURL:   snapshot.DetailsURL,
		TimeOccurred: snapshot.TimeOccurred,
	}
}

// successNotification builds the notification row for a recovered check state.
func successNotification(repoLabel string, repositoryID int64, pr model.PullRequest, snapshot model.PullRequestStatus) model.Notification {
	return model.Notification{
		TypeID:       model.NotificationTypeCheckRunSuccess,
		RepositoryID: repositoryID,
		Title:        fmt.Sprintf("Checks passed on %s #%d", repoLabel, pr.Number),
		Description:  pr.Title,
		Identifier:   snapshot.HeadSHA,
		Result:       "success",
		HTMLURL:      pr.HTMLURL,
		DetailsURL:   snapshot.DetailsURL,
		TimeOccurred: snapshot.TimeOccurred,
	}
}

// newReviewNotifications derives notifications for reviews that appeared
// since the previous sync. Self-reviews and reviews older than the staleness
// window are skipped. previousIDs holds the review identifiers already cached
// for the pull request.
func newReviewNotifications(repoLabel string, repositoryID int64, pr model.PullRequest, authorLogin string, previousIDs map[int64]bool, reviews []remote.Review, now time.Time) []model.Notification {
	var out []model.Notification

	for _, rv := range reviews {
		if previousIDs[rv.InternalID] {
			continue
		}
		if strings.EqualFold(rv.Author.Login, authorLogin) {
			continue
		}
		if rv.SubmittedAt.IsZero() || now.Sub(rv.SubmittedAt) > notificationStaleWindow {
			continue
		}

		state := strings.ToLower(rv.State)
		out = append(out, model.Notification{
			TypeID:       model.NotificationTypeNewReview,
			RepositoryID: repositoryID,
			Title:        fmt.Sprintf("%s reviewed %s #%d", rv.Author.Login, repoLabel, pr.Number),
			Description:  pr.Title,
			Identifier:   fmt.Sprintf("review-%d", rv.InternalID),
			Result:       state,
			HTMLURL:      rv.HTMLURL,
			TimeOccurred: rv.SubmittedAt,
		})
	}

	return out
}
