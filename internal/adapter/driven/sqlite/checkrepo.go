package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ericfisherdev/ghmirror/internal/domain/model"
	"github.com/ericfisherdev/ghmirror/internal/domain/remote"
)

// CheckRepo persists check runs and check suites. Both are tied to a commit
// SHA rather than a pull request row, so one observation applies to whichever
// PR currently has that head commit.
type CheckRepo struct {
	q Querier
}

// NewCheckRepo creates a CheckRepo bound to q.
func NewCheckRepo(q Querier) *CheckRepo {
	return &CheckRepo{q: q}
}

// CreateRunFrom maps a remote check run to a local entity. Unrecognized
// status or conclusion strings degrade to Unknown and are logged, never
// rejected; the remote service adds enum values without notice.
func (r *CheckRepo) CreateRunFrom(rc remote.CheckRun) model.CheckRun {
	status, ok := model.ParseCheckStatus(rc.Status)
	if !ok {
		slog.Warn("unrecognized check run status", "status", rc.Status, "check", rc.Name)
	}

	conclusion, ok := model.ParseCheckConclusion(rc.Conclusion)
	if !ok {
		slog.Warn("unrecognized check run conclusion", "conclusion", rc.Conclusion, "check", rc.Name)
	}

	return model.CheckRun{
		InternalID:   rc.InternalID,
		Name:         rc.Name,
		HeadSHA:      rc.HeadSHA,
		StatusID:     status,
		ConclusionID: conclusion,
		DetailsURL:   rc.DetailsURL,
		HTMLURL:      rc.HTMLURL,
		StartedAt:    rc.StartedAt,
		CompletedAt:  rc.CompletedAt,
	}
}

// CreateSuiteFrom maps a remote check suite to a local entity with the same
// Unknown-degrading enum treatment as CreateRunFrom.
func (r *CheckRepo) CreateSuiteFrom(rs remote.CheckSuite) model.CheckSuite {
	status, ok := model.ParseCheckStatus(rs.Status)
	if !ok {
		slog.Warn("unrecognized check suite status", "status", rs.Status, "app", rs.AppName)
	}

	conclusion, ok := model.ParseCheckConclusion(rs.Conclusion)
	if !ok {
		slog.Warn("unrecognized check suite conclusion", "conclusion", rs.Conclusion, "app", rs.AppName)
	}

	return model.CheckSuite{
		InternalID:   rs.InternalID,
		AppID:        rs.AppID,
		Name:         rs.AppName,
		HeadSHA:      rs.HeadSHA,
		StatusID:     status,
		ConclusionID: conclusion,
		HTMLURL:      rs.HTMLURL,
	}
}

// ReplaceRunsForSHA fully replaces the check runs recorded for a commit.
// Check lists carry no stable identity across a force-push, so incremental
// diffing is not attempted.
func (r *CheckRepo) ReplaceRunsForSHA(ctx context.Context, headSHA string, runs []remote.CheckRun) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM check_runs WHERE head_sha = ?`, headSHA); err != nil {
		return fmt.Errorf("delete check runs for %s: %w", headSHA, err)
	}

	const query = `
		INSERT INTO check_runs (internal_id, name, head_sha, status_id, conclusion_id,
			details_url, html_url, started_at, completed_at, time_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	for _, rc := range runs {
		run := r.CreateRunFrom(rc)
		if _, err := r.q.ExecContext(ctx, query,
			run.InternalID, run.Name, headSHA, int64(run.StatusID), int64(run.ConclusionID),
			run.DetailsURL, run.HTMLURL, timeArg(run.StartedAt), timeArg(run.CompletedAt), formatTime(now),
		); err != nil {
			return fmt.Errorf("insert check run %q for %s: %w", run.Name, headSHA, err)
		}
	}

	return nil
}

// GetSuiteByInternalID looks up a check suite by its GitHub identifier.
// Returns nil, nil when absent.
func (r *CheckRepo) GetSuiteByInternalID(ctx context.Context, internalID int64) (*model.CheckSuite, error) {
	const query = `
		SELECT id, internal_id, app_id, name, head_sha, status_id, conclusion_id, html_url, time_updated
		FROM check_suites WHERE internal_id = ?
	`

	suite, err := scanCheckSuite(r.q.QueryRowContext(ctx, query, internalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get check suite %d: %w", internalID, err)
	}

	return suite, nil
}

// GetOrCreateOrUpdateSuite inserts the suite if unknown, updates it only
// when its status or conclusion changed (or its head SHA moved), and
// otherwise returns the stored row with zero writes.
func (r *CheckRepo) GetOrCreateOrUpdateSuite(ctx context.Context, rs remote.CheckSuite) (*model.CheckSuite, error) {
	existing, err := r.GetSuiteByInternalID(ctx, rs.InternalID)
	if err != nil {
		return nil, err
	}

	suite := r.CreateSuiteFrom(rs)
	now := time.Now().UTC()

	if existing != nil {
		unchanged := existing.StatusID == suite.StatusID &&
			existing.ConclusionID == suite.ConclusionID &&
			strings.EqualFold(existing.HeadSHA, suite.HeadSHA)
		if unchanged {
			return existing, nil
		}

		const query = `
			UPDATE check_suites
			SET app_id = ?, name = ?, head_sha = ?, status_id = ?, conclusion_id = ?, html_url = ?, time_updated = ?
			WHERE id = ?
		`
		if _, err := r.q.ExecContext(ctx, query,
			suite.AppID, suite.Name, suite.HeadSHA, int64(suite.StatusID), int64(suite.ConclusionID),
			suite.HTMLURL, formatTime(now), existing.ID,
		); err != nil {
			return nil, fmt.Errorf("update check suite %d: %w", rs.InternalID, err)
		}

		return r.GetSuiteByInternalID(ctx, rs.InternalID)
	}

	const query = `
		INSERT INTO check_suites (internal_id, app_id, name, head_sha, status_id, conclusion_id, html_url, time_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := r.q.ExecContext(ctx, query,
		suite.InternalID, suite.AppID, suite.Name, suite.HeadSHA,
		int64(suite.StatusID), int64(suite.ConclusionID), suite.HTMLURL, formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert check suite %d: %w", rs.InternalID, err)
	}

	suite.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("check suite insert id: %w", err)
	}
	suite.TimeUpdated = now

	return &suite, nil
}

// DeleteSuitesNotIn removes suites for a commit that the remote no longer
// reports, typically after a re-request wiped a suite.
func (r *CheckRepo) DeleteSuitesNotIn(ctx context.Context, headSHA string, keepInternalIDs []int64) error {
	args := make([]any, 0, len(keepInternalIDs)+1)
	args = append(args, headSHA)

	query := `DELETE FROM check_suites WHERE head_sha = ?`
	if len(keepInternalIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keepInternalIDs)), ",")
		query += ` AND internal_id NOT IN (` + placeholders + `)`
		for _, id := range keepInternalIDs {
			args = append(args, id)
		}
	}

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete removed suites for %s: %w", headSHA, err)
	}

	return nil
}

// ListRunsForSHA returns the check runs recorded for a commit, ordered by name.
func (r *CheckRepo) ListRunsForSHA(ctx context.Context, headSHA string) ([]model.CheckRun, error) {
	const query = `
		SELECT id, internal_id, name, head_sha, status_id, conclusion_id,
		       details_url, html_url, started_at, completed_at, time_updated
		FROM check_runs
		WHERE head_sha = ?
		ORDER BY name
	`

	rows, err := r.q.QueryContext(ctx, query, headSHA)
	if err != nil {
		return nil, fmt.Errorf("query check runs for %s: %w", headSHA, err)
	}
	defer rows.Close()

	var runs []model.CheckRun
	for rows.Next() {
		run, err := scanCheckRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan check run: %w", err)
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate check runs: %w", err)
	}

	return runs, nil
}

// AggregateSuiteStateForSHA reduces all suites sharing a head SHA to the
// worst outstanding (status, conclusion) pair via MIN() over the
// severity-ordered enum integers. Suites from excludeAppID do not contribute
// (non-blocking automation). No rows maps to (None, None), never an error.
func (r *CheckRepo) AggregateSuiteStateForSHA(ctx context.Context, headSHA string, excludeAppID int64) (model.CheckStatus, model.CheckConclusion, error) {
	const query = `
		SELECT MIN(status_id), MIN(conclusion_id)
		FROM check_suites
		WHERE head_sha = ? AND app_id != ?
	`

	var status, conclusion sql.NullInt64
	if err := r.q.QueryRowContext(ctx, query, headSHA, excludeAppID).Scan(&status, &conclusion); err != nil {
		return model.CheckStatusNone, model.CheckConclusionNone,
			fmt.Errorf("aggregate suite state for %s: %w", headSHA, err)
	}

	result := model.CheckStatusNone
	if status.Valid {
		result = model.CheckStatus(status.Int64)
	}

	conclusionResult := model.CheckConclusionNone
	if conclusion.Valid {
		conclusionResult = model.CheckConclusion(conclusion.Int64)
	}

	return result, conclusionResult, nil
}

// DeleteUnreferencedRuns prunes check runs whose commit no longer matches
// any pull request's head.
func (r *CheckRepo) DeleteUnreferencedRuns(ctx context.Context) error {
	const query = `DELETE FROM check_runs WHERE head_sha NOT IN (SELECT head_sha FROM pull_requests)`

	if _, err := r.q.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("prune unreferenced check runs: %w", err)
	}

	return nil
}

// DeleteUnreferencedSuites prunes check suites whose commit no longer
// matches any pull request's head.
func (r *CheckRepo) DeleteUnreferencedSuites(ctx context.Context) error {
	const query = `DELETE FROM check_suites WHERE head_sha NOT IN (SELECT head_sha FROM pull_requests)`

	if _, err := r.q.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("prune unreferenced check suites: %w", err)
	}

	return nil
}

func scanCheckRun(s scanner) (*model.CheckRun, error) {
	var run model.CheckRun
	var statusID, conclusionID int64
	var startedAt, completedAt sql.NullString
	var timeUpdated string

	err := s.Scan(
		&run.ID, &run.InternalID, &run.Name, &run.HeadSHA, &statusID, &conclusionID,
		&run.DetailsURL, &run.HTMLURL, &startedAt, &completedAt, &timeUpdated,
	)
	if err != nil {
		return nil, err
	}

	run.StatusID = model.CheckStatus(statusID)
	run.ConclusionID = model.CheckConclusion(conclusionID)

	if run.StartedAt, err = nullableTime(startedAt, "started_at"); err != nil {
		return nil, err
	}
	if run.CompletedAt, err = nullableTime(completedAt, "completed_at"); err != nil {
		return nil, err
	}
	if run.TimeUpdated, err = parseTime(timeUpdated); err != nil {
		return nil, fmt.Errorf("parse time_updated: %w", err)
	}

	return &run, nil
}

func scanCheckSuite(s scanner) (*model.CheckSuite, error) {
	var suite model.CheckSuite
	var statusID, conclusionID int64
	var timeUpdated string

	err := s.Scan(
		&suite.ID, &suite.InternalID, &suite.AppID, &suite.Name, &suite.HeadSHA,
		&statusID, &conclusionID, &suite.HTMLURL, &timeUpdated,
	)
	if err != nil {
		return nil, err
	}

	suite.StatusID = model.CheckStatus(statusID)
	suite.ConclusionID = model.CheckConclusion(conclusionID)

	if suite.TimeUpdated, err = parseTime(timeUpdated); err != nil {
		return nil, fmt.Errorf("parse time_updated: %w", err)
	}

	return &suite, nil
}
