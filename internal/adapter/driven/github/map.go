package github

import (
	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/ghmirror/internal/domain/remote"
)

// Mapping functions convert go-github wire types to the remote DTOs. They use
// GetXxx() helper methods exclusively to avoid nil pointer panics.

func mapUser(u *gh.User) remote.User {
	return remote.User{
		InternalID: u.GetID(),
		Login:      u.GetLogin(),
		AvatarURL:  u.GetAvatarURL(),
		Type:       u.GetType(),
	}
}

func mapRepository(r *gh.Repository) remote.Repository {
	return remote.Repository{
		InternalID:    r.GetID(),
		Name:          r.GetName(),
		Owner:         mapUser(r.GetOwner()),
		Description:   r.GetDescription(),
		Private:       r.GetPrivate(),
		Fork:          r.GetFork(),
		DefaultBranch: r.GetDefaultBranch(),
		HTMLURL:       r.GetHTMLURL(),
		CloneURL:      r.GetCloneURL(),
		CreatedAt:     r.GetCreatedAt().Time,
		UpdatedAt:     r.GetUpdatedAt().Time,
		PushedAt:      r.GetPushedAt().Time,
	}
}

func mapLabel(l *gh.Label) remote.Label {
	return remote.Label{
		InternalID:  l.GetID(),
		Name:        l.GetName(),
		Color:       l.GetColor(),
		Description: l.GetDescription(),
	}
}

func mapIssue(i *gh.Issue) remote.Issue {
	labels := make([]remote.Label, 0, len(i.Labels))
	for _, l := range i.Labels {
		labels = append(labels, mapLabel(l))
	}

	assignees := make([]remote.User, 0, len(i.Assignees))
	for _, a := range i.Assignees {
		assignees = append(assignees, mapUser(a))
	}

	return remote.Issue{
		InternalID: i.GetID(),
		Number:     i.GetNumber(),
		Title:      i.GetTitle(),
		Body:       i.GetBody(),
		State:      i.GetState(),
		HTMLURL:    i.GetHTMLURL(),
		Author:     mapUser(i.GetUser()),
		Labels:     labels,
		Assignees:  assignees,
		CreatedAt:  i.GetCreatedAt().Time,
		UpdatedAt:  i.GetUpdatedAt().Time,
		ClosedAt:   i.GetClosedAt().Time,
	}
}

func mapPullRequest(pr *gh.PullRequest) remote.PullRequest {
	labels := make([]remote.Label, 0, len(pr.Labels))
	for _, l := range pr.Labels {
		labels = append(labels, mapLabel(l))
	}

	assignees := make([]remote.User, 0, len(pr.Assignees))
	for _, a := range pr.Assignees {
		assignees = append(assignees, mapUser(a))
	}

	return remote.PullRequest{
		InternalID:   pr.GetID(),
		Number:       pr.GetNumber(),
		Title:        pr.GetTitle(),
		Body:         pr.GetBody(),
		State:        pr.GetState(),
		HTMLURL:      pr.GetHTMLURL(),
		HeadSHA:      pr.GetHead().GetSHA(),
		SourceBranch: pr.GetHead().GetRef(),
		TargetBranch: pr.GetBase().GetRef(),
		Draft:        pr.GetDraft(),
		Author:       mapUser(pr.GetUser()),
		Labels:       labels,
		Assignees:    assignees,
		CreatedAt:    pr.GetCreatedAt().Time,
		UpdatedAt:    pr.GetUpdatedAt().Time,
		ClosedAt:     pr.GetClosedAt().Time,
		MergedAt:     pr.GetMergedAt().Time,
	}
}

func mapCheckRun(cr *gh.CheckRun) remote.CheckRun {
	return remote.CheckRun{
		InternalID:  cr.GetID(),
		Name:        cr.GetName(),
		HeadSHA:     cr.GetHeadSHA(),
		Status:      cr.GetStatus(),
		Conclusion:  cr.GetConclusion(),
		DetailsURL:  cr.GetDetailsURL(),
		HTMLURL:     cr.GetHTMLURL(),
		StartedAt:   cr.GetStartedAt().Time,
		CompletedAt: cr.GetCompletedAt().Time,
	}
}

func mapCheckSuite(cs *gh.CheckSuite) remote.CheckSuite {
	return remote.CheckSuite{
		InternalID: cs.GetID(),
		AppID:      cs.GetApp().GetID(),
		AppName:    cs.GetApp().GetName(),
		HeadSHA:    cs.GetHeadSHA(),
		Status:     cs.GetStatus(),
		Conclusion: cs.GetConclusion(),
		HTMLURL:    cs.GetURL(),
	}
}

func mapReview(r *gh.PullRequestReview) remote.Review {
	return remote.Review{
		InternalID:  r.GetID(),
		Author:      mapUser(r.GetUser()),
		State:       r.GetState(),
		Body:        r.GetBody(),
		HTMLURL:     r.GetHTMLURL(),
		SubmittedAt: r.GetSubmittedAt().Time,
	}
}

func mapRelease(r *gh.RepositoryRelease) remote.Release {
	return remote.Release{
		InternalID:  r.GetID(),
		Name:        r.GetName(),
		TagName:     r.GetTagName(),
		Prerelease:  r.GetPrerelease(),
		HTMLURL:     r.GetHTMLURL(),
		CreatedAt:   r.GetCreatedAt().Time,
		PublishedAt: r.GetPublishedAt().Time,
	}
}
