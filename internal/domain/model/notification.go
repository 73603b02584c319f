package model

import "time"

// Notification is a candidate user-facing notification derived from a state
// transition observed across sync passes. Creating a row does not imply
// delivery; ToastState is flipped by the UI layer once shown, and is the only
// field mutated outside a sync pass.
type Notification struct {
	ID           int64
	TypeID       NotificationType
	RepositoryID int64
	Title        string
	Description  string
	Identifier   string // SHA or other stable handle for the subject of the notification.
	Result       string
	HTMLURL      string
	DetailsURL   string
	ToastState   ToastState
	TimeOccurred time.Time
	TimeCreated  time.Time
}
