package models

import (
	"time"

	"gorm.io/datatypes"
)

// SMSDelivery records the outcome of one notify request. Destinations are
// stored as digests only.
type SMSDelivery struct {
	BaseModel

	InviteCodeID      string         `gorm:"size:36;not null;index" json:"invite_code_id"`
	DestinationDigest string         `gorm:"size:64;not null;index" json:"destination_digest"`
	Success           bool           `gorm:"not null;default:false" json:"success"`
	MessageID         string         `gorm:"size:128" json:"message_id,omitempty"`
	AttemptCount      int            `gorm:"not null;default:0" json:"attempt_count"`
	LastError         string         `gorm:"type:text" json:"last_error,omitempty"`
	Attempts          datatypes.JSON `json:"attempts"`
	CompletedAt       time.Time      `json:"completed_at"`
}

// TableName pins the table name used by migrations.
func (SMSDelivery) TableName() string {
	return "sms_deliveries"
}
