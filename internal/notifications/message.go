package notifications

import (
	"fmt"
	"math"
	"time"
)

// RemainingHours returns the whole hours left until expiresAt, rounded up,
// with a floor of one.
func RemainingHours(expiresAt, now time.Time) int {
	hours := int(math.Ceil(expiresAt.Sub(now).Hours()))
	if hours < 1 {
		return 1
	}
	return hours
}

// ComposeInviteMessage renders the SMS body for an invite code.
func ComposeInviteMessage(code string, expiresAt, now time.Time) string {
	hours := RemainingHours(expiresAt, now)
	unit := "hours"
	if hours == 1 {
		unit = "hour"
	}
	return fmt.Sprintf("Your invite code is %s. It is valid for the next %d %s.", code, hours, unit)
}
