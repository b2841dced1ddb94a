// Package identitysvc decodes the lifecycle webhooks of the identity provider (Clerk, delivered by Svix).
package identitysvc

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	svix "github.com/svix/svix-webhooks/go"

	"github.com/trezcool/tasksphere/core"
	"github.com/trezcool/tasksphere/core/user"
)

var (
	// errors
	ErrInvalidSignature = core.NewForbiddenError("invalid webhook signature")
	ErrInvalidPayload   = core.NewInvalidError("invalid webhook payload")
	ErrNotConfigured    = core.NewUnavailableError("identity webhooks are not configured")
)

type (
	emailAddress struct {
		ID           string `json:"id"`
		EmailAddress string `json:"email_address"`
	}

	userData struct {
		ID                    string         `json:"id"`
		EmailAddresses        []emailAddress `json:"email_addresses"`
		PrimaryEmailAddressID string         `json:"primary_email_address_id"`
		FirstName             string         `json:"first_name"`
		LastName              string         `json:"last_name"`
		ImageURL              string         `json:"image_url"`
		Deleted               bool           `json:"deleted"`
	}

	event struct {
		Type string   `json:"type"`
		Data userData `json:"data"`
	}

	// Verifier authenticates and decodes webhook deliveries.
	Verifier struct {
		wh *svix.Webhook
	}
)

// NewVerifier returns a Verifier for the given signing secret (whsec_...).
// With an empty secret, every delivery is refused with ErrNotConfigured.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return &Verifier{}, nil
	}
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, errors.Wrap(err, "creating webhook verifier")
	}
	return &Verifier{wh: wh}, nil
}

// Decode checks the signature of a delivery and turns it into a user.IdentityEvent.
func (v *Verifier) Decode(payload []byte, headers http.Header) (user.IdentityEvent, error) {
	if v.wh == nil {
		return user.IdentityEvent{}, ErrNotConfigured
	}
	if err := v.wh.Verify(payload, headers); err != nil {
		return user.IdentityEvent{}, ErrInvalidSignature
	}
	return ParseEvent(payload)
}

// ParseEvent maps an identity provider payload to a user.IdentityEvent.
func ParseEvent(payload []byte) (user.IdentityEvent, error) {
	var ev event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return user.IdentityEvent{}, ErrInvalidPayload
	}
	if ev.Type == "" || ev.Data.ID == "" {
		return user.IdentityEvent{}, ErrInvalidPayload
	}
	return user.IdentityEvent{
		Type: ev.Type,
		Principal: core.Principal{
			UserID:    ev.Data.ID,
			Email:     ev.Data.primaryEmail(),
			Name:      strings.TrimSpace(ev.Data.FirstName + " " + ev.Data.LastName),
			AvatarURL: ev.Data.ImageURL,
		},
	}, nil
}

func (d userData) primaryEmail() string {
	for _, addr := range d.EmailAddresses {
		if addr.ID == d.PrimaryEmailAddressID {
			return addr.EmailAddress
		}
	}
	if len(d.EmailAddresses) > 0 {
		return d.EmailAddresses[0].EmailAddress
	}
	return ""
}
