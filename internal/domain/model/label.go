package model

// Label is a locally cached issue/PR label.
type Label struct {
	ID          int64
	InternalID  int64
	Name        string
	Color       string
	Description string
}
