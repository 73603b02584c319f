package model

import "time"

// UserUpdateThreshold bounds write amplification for frequently referenced
// but rarely changing accounts: a newly observed user replaces the stored row
// only if this much time has passed since the last local write.
const UserUpdateThreshold = 4 * time.Hour

// User is a locally cached GitHub account (user, organization, or bot).
type User struct {
	ID          int64
	InternalID  int64
	Login       string
	AvatarURL   string
	Type        string // "User", "Organization", or "Bot".
	IsDeveloper bool   // True when this account is one of the logged-in developers.
	TimeUpdated time.Time
}
