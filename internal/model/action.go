package model

import "time"

// Verbs recorded in the action log.
const (
	VerbBookmarked = "bookmarked image"
	VerbLikes      = "likes"
)

// TargetImage is the target type of actions whose target is an Image.
const TargetImage = "image"

// Action is one entry of the append-only user activity log.
//
// It reads as a sentence: UserID Verb the TargetType TargetID, e.g.
// "alice likes image cs9k2f1o". Target is a (type, id) pair rather than
// a foreign key so other kinds of target can be logged without a schema
// change.
type Action struct {
	ID         string    `json:"id"         db:"id"`
	UserID     string    `json:"userId"     db:"user_id"`
	Verb       string    `json:"verb"       db:"verb"`
	TargetType string    `json:"targetType" db:"target_type"`
	TargetID   string    `json:"targetId"   db:"target_id"`
	CreatedAt  time.Time `json:"createdAt"  db:"created_at"`
}
