package model

// CheckStatus is the lifecycle state of a check run or check suite.
//
// Values are ordered by severity so that MIN() across all suites sharing a
// head SHA yields the worst outstanding state. The integer values are
// persisted; changing them silently changes aggregation results.
type CheckStatus int64

const (
	CheckStatusNone       CheckStatus = 0
	CheckStatusUnknown    CheckStatus = 1
	CheckStatusQueued     CheckStatus = 2
	CheckStatusInProgress CheckStatus = 3
	CheckStatusCompleted  CheckStatus = 4
)

// ParseCheckStatus maps a GitHub API status string to a CheckStatus.
// Unrecognized values map to CheckStatusUnknown with ok=false so callers can
// log the new value and proceed.
func ParseCheckStatus(s string) (CheckStatus, bool) {
	switch s {
	case "":
		return CheckStatusNone, true
	case "queued", "pending", "waiting", "requested":
		return CheckStatusQueued, true
	case "in_progress":
		return CheckStatusInProgress, true
	case "completed":
		return CheckStatusCompleted, true
	}
	return CheckStatusUnknown, false
}

// String returns the canonical API spelling for the status.
func (s CheckStatus) String() string {
	switch s {
	case CheckStatusNone:
		return "none"
	case CheckStatusQueued:
		return "queued"
	case CheckStatusInProgress:
		return "in_progress"
	case CheckStatusCompleted:
		return "completed"
	}
	return "unknown"
}

// CheckConclusion is the outcome of a completed check run or check suite.
//
// Values are ordered by severity (worst first) so that MIN() across all
// suites sharing a head SHA yields the worst conclusion. Success sorts above
// every failure mode; Skipped sorts above Success so a skipped suite never
// masks a real result.
type CheckConclusion int64

const (
	CheckConclusionNone           CheckConclusion = 0
	CheckConclusionUnknown        CheckConclusion = 1
	CheckConclusionFailure        CheckConclusion = 2
	CheckConclusionTimedOut       CheckConclusion = 3
	CheckConclusionCancelled      CheckConclusion = 4
	CheckConclusionActionRequired CheckConclusion = 5
	CheckConclusionStale          CheckConclusion = 6
	CheckConclusionNeutral        CheckConclusion = 7
	CheckConclusionSuccess        CheckConclusion = 8
	CheckConclusionSkipped        CheckConclusion = 9
)

// ParseCheckConclusion maps a GitHub API conclusion string to a
// CheckConclusion. Unrecognized values map to CheckConclusionUnknown with
// ok=false so callers can log the new value and proceed.
func ParseCheckConclusion(s string) (CheckConclusion, bool) {
	switch s {
	case "":
		return CheckConclusionNone, true
	case "failure", "startup_failure":
		return CheckConclusionFailure, true
	case "timed_out":
		return CheckConclusionTimedOut, true
	case "cancelled", "canceled":
		return CheckConclusionCancelled, true
	case "action_required":
		return CheckConclusionActionRequired, true
	case "stale":
		return CheckConclusionStale, true
	case "neutral":
		return CheckConclusionNeutral, true
	case "success":
		return CheckConclusionSuccess, true
	case "skipped":
		return CheckConclusionSkipped, true
	}
	return CheckConclusionUnknown, false
}

// String returns the canonical API spelling for the conclusion.
func (c CheckConclusion) String() string {
	switch c {
	case CheckConclusionNone:
		return "none"
	case CheckConclusionFailure:
		return "failure"
	case CheckConclusionTimedOut:
		return "timed_out"
	case CheckConclusionCancelled:
		return "cancelled"
	case CheckConclusionActionRequired:
		return "action_required"
	case CheckConclusionStale:
		return "stale"
	case CheckConclusionNeutral:
		return "neutral"
	case CheckConclusionSuccess:
		return "success"
	case CheckConclusionSkipped:
		return "skipped"
	}
	return "unknown"
}

// Failed reports whether the conclusion counts as a failure for notification
// purposes.
func (c CheckConclusion) Failed() bool {
	switch c {
	case CheckConclusionFailure, CheckConclusionTimedOut, CheckConclusionCancelled, CheckConclusionActionRequired:
		return true
	}
	return false
}

// Succeeded reports whether the conclusion counts as a success for
// notification purposes.
func (c CheckConclusion) Succeeded() bool {
	return c == CheckConclusionSuccess
}

// CommitState is the aggregate state of a commit's combined status.
type CommitState int64

const (
	CommitStateNone    CommitState = 0
	CommitStateUnknown CommitState = 1
	CommitStateError   CommitState = 2
	CommitStateFailure CommitState = 3
	CommitStatePending CommitState = 4
	CommitStateSuccess CommitState = 5
)

// ParseCommitState maps a GitHub API combined-status state string to a
// CommitState. Unrecognized values map to CommitStateUnknown with ok=false.
func ParseCommitState(s string) (CommitState, bool) {
	switch s {
	case "":
		return CommitStateNone, true
	case "error":
		return CommitStateError, true
	case "failure":
		return CommitStateFailure, true
	case "pending":
		return CommitStatePending, true
	case "success":
		return CommitStateSuccess, true
	}
	return CommitStateUnknown, false
}

// String returns the canonical API spelling for the state.
func (s CommitState) String() string {
	switch s {
	case CommitStateNone:
		return "none"
	case CommitStateError:
		return "error"
	case CommitStateFailure:
		return "failure"
	case CommitStatePending:
		return "pending"
	case CommitStateSuccess:
		return "success"
	}
	return "unknown"
}

// NotificationType identifies what kind of state transition produced a
// notification record.
type NotificationType int64

const (
	NotificationTypeUnknown         NotificationType = 0
	NotificationTypeCheckRunFailed  NotificationType = 1
	NotificationTypeCheckRunSuccess NotificationType = 2
	NotificationTypeNewReview       NotificationType = 3
)

// String returns a stable label for the notification type.
func (t NotificationType) String() string {
	switch t {
	case NotificationTypeCheckRunFailed:
		return "check_run_failed"
	case NotificationTypeCheckRunSuccess:
		return "check_run_success"
	case NotificationTypeNewReview:
		return "new_review"
	}
	return "unknown"
}

// ToastState tracks whether a notification has been shown to the user.
// Creation of a notification row does not imply delivery.
type ToastState int64

const (
	ToastStateUnshown ToastState = 0
	ToastStateShown   ToastState = 1
)
