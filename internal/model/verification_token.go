// Package model defines database models
package model

import "time"

// VerificationToken links a chat platform member to a pending account link.
// Rows are never deleted, they double as the audit trail.
type VerificationToken struct {
	ID          uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Token       string     `gorm:"uniqueIndex;not null" json:"-"`
	SubjectID   string     `gorm:"index;not null" json:"subject_id"`
	SubjectName string     `gorm:"not null" json:"subject_name"` // Name at issuance, may go stale
	RealmID     string     `gorm:"index;not null" json:"realm_id"`
	Completed   bool       `gorm:"index;not null;default:false" json:"completed"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitzero"`
}

func (VerificationToken) TableName() string { return "verifications" }
