package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tasksphere/core"
)

// User is the directory record of a principal issued by the identity provider.
type User struct {
	ID            string      `json:"id"` // identity provider's user ID
	Email         string      `json:"email"`
	FullName      null.String `json:"full_name"`
	AvatarURL     null.String `json:"avatar_url"`
	IsSuperAdmin  bool        `json:"is_super_admin"`
	AIEnabled     bool        `json:"ai_enabled"`
	InstituteName null.String `json:"institute_name"`
	CreatedAt     time.Time   `json:"created_at"` // UTC
	UpdatedAt     time.Time   `json:"updated_at"` // UTC
}

// IsProfileComplete gates the app until the user tells us which institute they belong to.
func (u User) IsProfileComplete() bool {
	return u.InstituteName.Valid && strings.TrimSpace(u.InstituteName.String) != ""
}

func (u User) DisplayName() string {
	if u.FullName.Valid && u.FullName.String != "" {
		return u.FullName.String
	}
	return u.Email
}

func (u User) Principal() core.Principal {
	return core.Principal{
		UserID:    u.ID,
		Email:     u.Email,
		Name:      u.FullName.String,
		AvatarURL: u.AvatarURL.String,
	}
}

// UpdateProfile defines what information a user may change on their own record.
type UpdateProfile struct {
	FullName      *string `json:"full_name" validate:"omitempty,max=255"`
	AvatarURL     *string `json:"avatar_url" validate:"omitempty,url"`
	InstituteName *string `json:"institute_name" validate:"omitempty,max=255"`
	AIEnabled     *bool   `json:"ai_enabled"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	for _, s := range []*string{up.FullName, up.AvatarURL, up.InstituteName} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	return validate.Struct(up)
}

// Identity provider lifecycle events
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

type IdentityEvent struct {
	Type      string
	Principal core.Principal
}

type QueryFilter struct {
	Search       string `query:"search"`
	IsSuperAdmin *bool  `query:"is_super_admin"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
