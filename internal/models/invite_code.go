package models

import "time"

// InviteState is the derived lifecycle state of an invite code. Expiry is never
// persisted; it is computed against a clock.
type InviteState string

const (
	InviteStateActive   InviteState = "active"
	InviteStateRedeemed InviteState = "redeemed"
	InviteStateExpired  InviteState = "expired"
)

// MaxCodeLength matches the width of the code column.
const MaxCodeLength = 20

// InviteCode is a single-use, time-limited code issued by a user.
type InviteCode struct {
	BaseModel

	Code      string     `gorm:"size:20;not null;uniqueIndex:idx_invite_codes_code" json:"code"`
	CreatedBy string     `gorm:"size:64;not null;index" json:"created_by"`
	UsedBy    *string    `gorm:"size:64;index" json:"used_by,omitempty"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	ExpiresAt time.Time  `gorm:"not null;index" json:"expires_at"`
}

// TableName pins the table name used by migrations.
func (InviteCode) TableName() string {
	return "invite_codes"
}

// Redeemed reports whether the code has been consumed.
func (c *InviteCode) Redeemed() bool {
	return c.UsedBy != nil
}

// ExpiredAt reports whether the code is past its deadline at now.
func (c *InviteCode) ExpiredAt(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// State derives the lifecycle state at now. A redeemed code stays redeemed
// after its deadline passes.
func (c *InviteCode) State(now time.Time) InviteState {
	switch {
	case c.Redeemed():
		return InviteStateRedeemed
	case c.ExpiredAt(now):
		return InviteStateExpired
	default:
		return InviteStateActive
	}
}
