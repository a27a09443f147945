package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// IssueStatus enum
type IssueStatus string

const (
	Pending IssueStatus = "pending"
)

// TimestampLayout is how created_at is stored in SQLite and rendered in JSON.
const TimestampLayout = "2006-01-02 15:04:05"

// AnonymousEmail is stored when a reporter leaves user_email empty.
const AnonymousEmail = "anonymous@example.com"

// Issue represents a civic issue reported by a citizen
type Issue struct {
	ID          int64       `bson:"_id" json:"id"`
	Category    string      `bson:"category" json:"category"`
	Description string      `bson:"description" json:"description"`
	ImagePath   *string     `bson:"image_path" json:"image_path"`
	Latitude    *float64    `bson:"latitude" json:"latitude"`
	Longitude   *float64    `bson:"longitude" json:"longitude"`
	Status      IssueStatus `bson:"status" json:"status"`
	CreatedAt   time.Time   `bson:"created_at" json:"created_at"`
	UserEmail   string      `bson:"user_email" json:"user_email"`
}

type issueJSON Issue

// MarshalJSON renders created_at as "YYYY-MM-DD HH:MM:SS" in UTC.
func (i Issue) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		issueJSON
		CreatedAt string `json:"created_at"`
	}{
		issueJSON: issueJSON(i),
		CreatedAt: i.CreatedAt.UTC().Format(TimestampLayout),
	})
}

func (i *Issue) UnmarshalJSON(data []byte) error {
	aux := struct {
		*issueJSON
		CreatedAt string `json:"created_at"`
	}{issueJSON: (*issueJSON)(i)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	i.CreatedAt = time.Time{}
	if aux.CreatedAt == "" {
		return nil
	}
	t, err := time.Parse(TimestampLayout, aux.CreatedAt)
	if err != nil {
		return fmt.Errorf("created_at: %w", err)
	}
	i.CreatedAt = t
	return nil
}

// IssueSubmission is the inbound payload of POST /api/issues.
type IssueSubmission struct {
	Category    string   `json:"category" validate:"required,notblank"`
	Description string   `json:"description" validate:"required,notblank"`
	Image       string   `json:"image,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	UserEmail   string   `json:"user_email,omitempty"`
}

// NewIssue carries the resolved fields handed to a repository on insert.
// Status and creation time are never caller-settable.
type NewIssue struct {
	Category    string
	Description string
	ImagePath   *string
	Latitude    *float64
	Longitude   *float64
	UserEmail   string
}
