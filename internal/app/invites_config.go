package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charlesng35/invitegate/internal/services"
)

// QuotaLocation resolves the timezone month boundaries are computed in.
// Empty and "Local" select the server timezone.
func (c InvitesConfig) QuotaLocation() (*time.Location, error) {
	name := strings.TrimSpace(c.Quota.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("config: invites.quota.timezone: %w", err)
	}
	return loc, nil
}

// ServiceOptions converts the invite policy into InviteService options.
// Zero values keep the service defaults.
func (c InvitesConfig) ServiceOptions() []services.InviteOption {
	opts := []services.InviteOption{
		services.WithCodeLength(c.CodeLength),
		services.WithInviteValidity(c.Validity),
		services.WithMaxGenerateAttempts(c.MaxGenerateAttempts),
		services.WithMaxListLimit(c.List.MaxLimit),
	}
	if c.MinRedeemLength > 0 || c.MaxRedeemLength > 0 {
		opts = append(opts, services.WithRedeemLength(c.MinRedeemLength, c.MaxRedeemLength))
	}
	return opts
}
