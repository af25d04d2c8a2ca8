// Package invite implements §4.J: share-link/email validation, the four
// rate-limit bins, and the handoff to the external mailer.
package invite

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obscyra/rooms/internal/apierr"
	"github.com/obscyra/rooms/internal/auth"
	"github.com/obscyra/rooms/internal/config"
	"github.com/obscyra/rooms/internal/mailer"
	"github.com/obscyra/rooms/internal/models"
	"github.com/obscyra/rooms/internal/ratelimit"
)

var fragmentKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{32,128}$`)

// Input is one `/api/invite` request (§6).
type Input struct {
	RecipientEmail string
	RoomID         string
	ShareLink      string
	RoomName       string
	IP             string
}

// Flow wires the rate limiter, config, mailer, and room lookup together.
type Flow struct {
	DB      *gorm.DB
	Limiter *ratelimit.Limiter
	Invite  config.InviteConfig
	Rate    config.RateLimitConfig
	Mailer  *mailer.Sender
}

// Send validates the input, consumes all four rate-limit bins before the
// outbound send (§4.J: "consumed before the external send, to prevent a
// looping client from burning through recipient quota via timeouts"), then
// confirms the room still exists before rendering and handing the message
// to the mailer. Gate order: email shape, room id shape, rate limits, room
// existence.
func (f *Flow) Send(ctx context.Context, in Input) error {
	if _, err := mail.ParseAddress(in.RecipientEmail); err != nil {
		return apierr.BadInputf("invalid recipient email")
	}
	if !auth.IsValidRoomID(in.RoomID) {
		return apierr.BadInputf("invalid room id")
	}

	if err := f.checkRateLimits(in); err != nil {
		return err
	}

	if err := f.checkRoomExists(in.RoomID); err != nil {
		return err
	}

	link, err := f.resolveLink(in)
	if err != nil {
		return err
	}

	body := renderTemplate(in.RoomName, link)
	return f.Mailer.Send(ctx, mailer.Message{
		To:       in.RecipientEmail,
		Subject:  fmt.Sprintf("You've been invited to %q", in.RoomName),
		BodyHTML: body,
	})
}

// checkRoomExists is the §4.J final pass gate: an invite may not be sent
// for a room id that was never created or has already been destroyed.
func (f *Flow) checkRoomExists(roomID string) error {
	var room models.Room
	err := f.DB.Select("id", "status", "expires_at").Where("id = ?", roomID).First(&room).Error
	if err != nil {
		return apierr.NotFoundf("room not found")
	}
	if room.Status == models.StatusDestroyed || time.Now().After(room.ExpiresAt) {
		return apierr.Gonef("room has expired")
	}
	return nil
}

func (f *Flow) checkRateLimits(in Input) error {
	if err := ratelimit.CheckOrReject(f.Limiter, "invite", "global", f.Rate.InviteGlobal); err != nil {
		return err
	}
	if err := ratelimit.CheckOrReject(f.Limiter, "invite_recipient", in.RecipientEmail, f.Rate.InvitePerRecipient); err != nil {
		return err
	}
	ipRoomKey := in.IP + "|" + in.RoomID
	if err := ratelimit.CheckOrReject(f.Limiter, "invite_ip_room", ipRoomKey, f.Rate.InvitePerIPRoom); err != nil {
		return err
	}
	minIntervalRule := config.RateLimitRule{Window: f.Rate.InviteMinInterval, Max: 1}
	if err := ratelimit.CheckOrReject(f.Limiter, "invite_min_interval", in.IP, minIntervalRule); err != nil {
		return err
	}
	return nil
}

// resolveLink reconstructs the outgoing URL server-side (§4.J): if the
// client supplied a share link it is validated against the origin
// allow-list, path shape, and fragment grammar; otherwise a canonical link
// is built from the configured frontend origin.
func (f *Flow) resolveLink(in Input) (string, error) {
	if in.ShareLink == "" {
		return fmt.Sprintf("%s/room/%s", f.Invite.FrontendOrigin, in.RoomID), nil
	}

	u, err := url.Parse(in.ShareLink)
	if err != nil {
		return "", apierr.BadInputf("malformed share link")
	}

	if !f.originAllowed(u) {
		return "", apierr.BadInputf("share link origin is not allowed")
	}

	if u.RawQuery != "" {
		return "", apierr.BadInputf("share link must not carry a query string")
	}
	if u.Path != "/room/"+in.RoomID {
		return "", apierr.BadInputf("share link path does not match the room")
	}

	if u.Fragment != "" {
		if err := validateFragment(u.Fragment); err != nil {
			return "", err
		}
	}

	return in.ShareLink, nil
}

func (f *Flow) originAllowed(u *url.URL) bool {
	origin := u.Scheme + "://" + u.Host
	if origin == f.Invite.FrontendOrigin {
		return true
	}
	if !f.Invite.AllowLocalOrigins {
		return false
	}
	return strings.HasPrefix(u.Host, "localhost:") || u.Host == "localhost" ||
		strings.HasPrefix(u.Host, "127.0.0.1")
}

// validateFragment enforces "at most one URL fragment parameter `key`
// matching [A-Za-z0-9_-]{32,128}".
func validateFragment(fragment string) error {
	parts := strings.Split(fragment, "&")
	if len(parts) > 1 {
		return apierr.BadInputf("share link fragment must carry at most one parameter")
	}
	kv := strings.SplitN(parts[0], "=", 2)
	if len(kv) != 2 || kv[0] != "key" {
		return apierr.BadInputf("share link fragment must be a single key=... parameter")
	}
	if !fragmentKeyPattern.MatchString(kv[1]) {
		return apierr.BadInputf("share link fragment key has an invalid shape")
	}
	return nil
}

func renderTemplate(roomName, link string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html><body>
<p>You've been invited to the room <strong>%s</strong>.</p>
<p><a href="%s">Open the room</a></p>
</body></html>`, roomName, link)
}

// ParseRoomID is a convenience for handlers that need the UUID form after
// Input validation has already confirmed its shape.
func ParseRoomID(id string) (uuid.UUID, error) {
	return uuid.Parse(id)
}
