package group

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tasksphere/core"
	"github.com/trezcool/tasksphere/core/access"
)

type Group struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Description   null.String `json:"description"`
	InstituteName null.String `json:"institute_name"`
	Department    null.String `json:"department"`
	TopAdminID    string      `json:"top_admin_id"`
	CreatedAt     time.Time   `json:"created_at"` // UTC
}

// UserGroup is a group seen from one of its members.
type UserGroup struct {
	Group
	Role access.Role `json:"role"`
}

type Member struct {
	GroupID  string      `json:"group_id"`
	UserID   string      `json:"user_id"`
	Role     access.Role `json:"role"`
	JoinedAt time.Time   `json:"joined_at"` // UTC
}

// MemberInfo is a Member along with the public profile of the user.
type MemberInfo struct {
	Member
	Email     string      `json:"email"`
	FullName  null.String `json:"full_name"`
	AvatarURL null.String `json:"avatar_url"`
}

type RequestStatus string

// Request statuses
const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

func (s RequestStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

type JoinRequest struct {
	ID          string        `json:"id"`
	GroupID     string        `json:"group_id"`
	UserID      string        `json:"user_id"`
	Status      RequestStatus `json:"status"`
	Response    null.String   `json:"response"`
	CreatedAt   time.Time     `json:"created_at"`   // UTC
	RespondedAt null.Time     `json:"responded_at"` // UTC
}

// JoinState is where a user stands with regard to joining a group.
type JoinState string

const (
	JoinNone     JoinState = "none"
	JoinPending  JoinState = "pending"
	JoinMember   JoinState = "member"
	JoinRejected JoinState = "rejected"
)

type JoinStatus struct {
	State   JoinState    `json:"state"`
	Role    access.Role  `json:"role,omitempty"`
	Request *JoinRequest `json:"request,omitempty"`
}

// CreationRequest asks a super admin to create a new group.
type CreationRequest struct {
	ID                 string          `json:"id"`
	SenderID           string          `json:"sender_id"`
	SenderEmail        string          `json:"sender_email"`
	RequestedGroupName string          `json:"requested_group_name"`
	Description        null.String     `json:"description"`
	InstituteName      null.String     `json:"institute_name"`
	Department         null.String     `json:"department"`
	Transcript         core.Transcript `json:"transcript"`
	SessionID          null.String     `json:"session_id"`
	Status             RequestStatus   `json:"status"`
	Response           null.String     `json:"response"`
	RespondedAt        null.Time       `json:"responded_at"` // UTC
	GroupID            null.String     `json:"group_id"`
	CreatedAt          time.Time       `json:"created_at"` // UTC
}

type NewGroup struct {
	Name          string `json:"name" validate:"notblank,max=120"`
	Description   string `json:"description" validate:"max=2000"`
	InstituteName string `json:"institute_name" validate:"max=255"`
	Department    string `json:"department" validate:"max=255"`
}

func (ng *NewGroup) clean() {
	ng.Name = core.CleanString(ng.Name)
	ng.Description = core.CleanString(ng.Description)
	ng.InstituteName = core.CleanString(ng.InstituteName)
	ng.Department = core.CleanString(ng.Department)
}

func (ng *NewGroup) Validate(validate *validator.Validate) error {
	ng.clean()
	return validate.Struct(ng)
}

type NewCreationRequest struct {
	GroupName     string `json:"requested_group_name" validate:"max=120"` // defaults to the intake answer
	Description   string `json:"description" validate:"max=2000"`
	InstituteName string `json:"institute_name" validate:"max=255"`
	Department    string `json:"department" validate:"max=255"`
	SessionID     string `json:"session_id" validate:"omitempty,uuid"` // completed intake session
}

func (nr *NewCreationRequest) clean() {
	nr.GroupName = core.CleanString(nr.GroupName)
	nr.Description = core.CleanString(nr.Description)
	nr.InstituteName = core.CleanString(nr.InstituteName)
	nr.Department = core.CleanString(nr.Department)
	nr.SessionID = core.CleanString(nr.SessionID, true /* lower */)
}

func (nr *NewCreationRequest) Validate(validate *validator.Validate) error {
	nr.clean()
	return validate.Struct(nr)
}

// Response is a reviewer's answer to a request: an optional note when approving,
// a mandatory reason when rejecting.
type Response struct {
	Note string `json:"note" validate:"max=1000"`
}

func (r *Response) Validate(validate *validator.Validate) error {
	r.Note = core.CleanString(r.Note)
	return validate.Struct(r)
}

type RoleUpdate struct {
	Role access.Role `json:"role" validate:"required,group_role"`
}

func (ru *RoleUpdate) Validate(validate *validator.Validate) error {
	ru.Role = access.Role(core.CleanString(string(ru.Role), true /* lower */))
	return validate.Struct(ru)
}

type QueryFilter struct {
	Search string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}
