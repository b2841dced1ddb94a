package group

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tasksphere/core"
	"github.com/trezcool/tasksphere/core/access"
	"github.com/trezcool/tasksphere/core/user"
)

var (
	// errors
	ErrNotFound                = core.NewNotFoundError("group not found")
	ErrNameTaken               = core.NewConflictError("a group with this name already exists")
	ErrMemberNotFound          = core.NewNotFoundError("member not found")
	ErrAlreadyMember           = core.NewConflictError("already a member of this group")
	ErrRequestAlreadySent      = core.NewConflictError("request already sent")
	ErrJoinRequestNotFound     = core.NewNotFoundError("join request not found")
	ErrCreationRequestNotFound = core.NewNotFoundError("group creation request not found")
	ErrRequestResponded        = core.NewConflictError("this request has already been responded to")
	ErrSenderNotFound          = core.NewNotFoundError("the requester does not have an account anymore")
	ErrTopAdminCannotLeave     = core.NewConflictError("the top admin cannot leave the group, transfer ownership first")
	ErrTopAdminCannotBeRemoved = core.NewConflictError("the top admin cannot be removed, transfer ownership first")
	ErrTopAdminRoleChange      = core.NewConflictError("the top admin's role cannot be changed, transfer ownership instead")
	ErrInvalidRole             = core.NewInvalidError("role must be one of student, admin or top_admin")
	ErrRoleTooHigh             = core.NewForbiddenError("you cannot grant a role above your own")

	errReasonRequired = errors.New("a reason is required to reject a request")
	ErrReasonRequired = core.NewValidationError(
		errReasonRequired,
		core.FieldError{Field: "note", Error: errReasonRequired.Error()},
	)
)

type (
	Repository interface {
		// CreateGroup returns ErrNameTaken if a group with the same name (case-insensitive) exists.
		CreateGroup(ctx context.Context, grp Group) (Group, error)
		GetGroup(ctx context.Context, id string) (Group, error)
		// QueryGroups does a case-insensitive match of search on Group.Name and Group.InstituteName.
		QueryGroups(ctx context.Context, filter *QueryFilter) ([]Group, error)
		UpdateGroup(ctx context.Context, grp Group) (Group, error)
		GroupsForUser(ctx context.Context, userID string) ([]UserGroup, error)

		// AddMember returns ErrAlreadyMember if the user already belongs to the group.
		AddMember(ctx context.Context, mbr Member) (Member, error)
		GetMember(ctx context.Context, groupID, userID string) (Member, error)
		MemberRoles(ctx context.Context, userID string) ([]access.Role, error)
		QueryMembers(ctx context.Context, groupID string) ([]MemberInfo, error)
		UpdateMember(ctx context.Context, mbr Member) (Member, error)
		DeleteMember(ctx context.Context, groupID, userID string) error

		// CreateJoinRequest returns ErrRequestAlreadySent if a pending request exists for the pair.
		CreateJoinRequest(ctx context.Context, req JoinRequest) (JoinRequest, error)
		GetJoinRequest(ctx context.Context, id string) (JoinRequest, error)
		// LatestJoinRequest returns the most recent request of the user for the group.
		LatestJoinRequest(ctx context.Context, groupID, userID string) (JoinRequest, error)
		QueryJoinRequests(ctx context.Context, groupID string, status RequestStatus) ([]JoinRequest, error)
		UpdateJoinRequest(ctx context.Context, req JoinRequest) (JoinRequest, error)
		// DeletePendingJoinRequest deletes the request only while it is pending,
		// ErrJoinRequestNotFound otherwise.
		DeletePendingJoinRequest(ctx context.Context, groupID, userID string) error

		CreateCreationRequest(ctx context.Context, req CreationRequest) (CreationRequest, error)
		GetCreationRequest(ctx context.Context, id string) (CreationRequest, error)
		// QueryCreationRequests filters on the sender (all senders if empty) and the status (any if empty).
		QueryCreationRequests(ctx context.Context, senderID string, status RequestStatus) ([]CreationRequest, error)
		UpdateCreationRequest(ctx context.Context, req CreationRequest) (CreationRequest, error)
	}

	UserReader interface {
		GetUser(ctx context.Context, id string) (user.User, error)
		GetUserByEmail(ctx context.Context, email string) (user.User, error)
	}

	// Intake is what a completed group-creation conversation collected.
	Intake struct {
		Transcript    core.Transcript
		Summary       string
		GroupName     string
		Description   string
		InstituteName string
		Department    string
	}

	IntakeReader interface {
		// CompletedIntake returns the intake of a completed session owned by the user.
		CompletedIntake(ctx context.Context, sessionID, userID string) (Intake, error)
	}

	Service struct {
		repo    Repository
		users   UserReader
		tx      core.TxRunner
		mailSvc core.EmailService
		jobs    core.Dispatcher
		logger  core.Logger
		intake  IntakeReader
	}
)

func NewService(
	repo Repository,
	users UserReader,
	tx core.TxRunner,
	mailSvc core.EmailService,
	jobs core.Dispatcher,
	logger core.Logger,
) *Service {
	return &Service{
		repo:    repo,
		users:   users,
		tx:      tx,
		mailSvc: mailSvc,
		jobs:    jobs,
		logger:  logger,
	}
}

// SetIntakeReader plugs the assistant intake into creation requests.
func (svc *Service) SetIntakeReader(intake IntakeReader) {
	svc.intake = intake
}

// Create creates a group owned by the actor, who joins it as top admin.
func (svc *Service) Create(ctx context.Context, actor access.Actor, ng NewGroup) (Group, error) {
	if err := access.RequireSuperAdmin(ctx, actor); err != nil {
		return Group{}, err
	}
	ng.clean()

	var grp Group
	err := svc.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		grp, err = svc.createOwnedGroup(ctx, Group{
			Name:          ng.Name,
			Description:   nullString(ng.Description),
			InstituteName: nullString(ng.InstituteName),
			Department:    nullString(ng.Department),
			TopAdminID:    actor.UserID,
		})
		return err
	})
	if err != nil {
		return Group{}, err
	}
	actor.Refresh()
	return grp, nil
}

func (svc *Service) createOwnedGroup(ctx context.Context, grp Group) (Group, error) {
	now := time.Now().UTC()
	grp.CreatedAt = now
	grp, err := svc.repo.CreateGroup(ctx, grp)
	if err != nil {
		if errors.Cause(err) == ErrNameTaken {
			return Group{}, ErrNameTaken
		}
		return Group{}, errors.Wrap(err, "creating group")
	}
	if _, err = svc.repo.AddMember(ctx, Member{
		GroupID:  grp.ID,
		UserID:   grp.TopAdminID,
		Role:     access.RoleTopAdmin,
		JoinedAt: now,
	}); err != nil {
		return Group{}, errors.Wrap(err, "adding top admin")
	}
	return grp, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Group, error) {
	return svc.repo.GetGroup(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Group, error) {
	return svc.repo.QueryGroups(ctx, filter)
}

// ListForUser lists the groups the actor belongs to, along with their role.
func (svc *Service) ListForUser(ctx context.Context, actor access.Actor) ([]UserGroup, error) {
	return svc.repo.GroupsForUser(ctx, actor.UserID)
}

func (svc *Service) Members(ctx context.Context, actor access.Actor, groupID string) ([]MemberInfo, error) {
	if err := access.RequireGroup(ctx, actor, groupID, access.RoleStudent); err != nil {
		return nil, err
	}
	return svc.repo.QueryMembers(ctx, groupID)
}

// ChangeMemberRole changes the role of a member.
// Granting top_admin transfers the ownership of the group: the previous top admin becomes admin.
func (svc *Service) ChangeMemberRole(ctx context.Context, actor access.Actor, groupID, userID string, role access.Role) (Member, error) {
	if !access.IsGroupRole(role) {
		return Member{}, ErrInvalidRole
	}
	if err := access.RequireGroup(ctx, actor, groupID, access.RoleTopAdmin); err != nil {
		return Member{}, err
	}
	if err := svc.checkGrantable(ctx, actor, groupID, role); err != nil {
		return Member{}, err
	}

	mbr, err := svc.repo.GetMember(ctx, groupID, userID)
	if err != nil {
		return Member{}, err
	}
	if mbr.Role == role {
		return mbr, nil
	}
	if mbr.Role == access.RoleTopAdmin {
		return Member{}, ErrTopAdminRoleChange
	}

	err = svc.tx.RunInTx(ctx, func(ctx context.Context) error {
		if role == access.RoleTopAdmin {
			grp, err := svc.repo.GetGroup(ctx, groupID)
			if err != nil {
				return err
			}
			prev, err := svc.repo.GetMember(ctx, groupID, grp.TopAdminID)
			if err == nil {
				prev.Role = access.RoleAdmin
				if _, err = svc.repo.UpdateMember(ctx, prev); err != nil {
					return errors.Wrap(err, "demoting previous top admin")
				}
			} else if errors.Cause(err) != ErrMemberNotFound {
				return err
			}
			grp.TopAdminID = userID
			if _, err = svc.repo.UpdateGroup(ctx, grp); err != nil {
				return errors.Wrap(err, "updating group owner")
			}
		}
		mbr.Role = role
		mbr, err = svc.repo.UpdateMember(ctx, mbr)
		return errors.Wrap(err, "updating member")
	})
	if err != nil {
		return Member{}, err
	}
	actor.Refresh()
	return mbr, nil
}

// checkGrantable denies granting a role above the actor's own role in the group.
func (svc *Service) checkGrantable(ctx context.Context, actor access.Actor, groupID string, role access.Role) error {
	isSuper, err := actor.IsSuperAdmin(ctx)
	if err != nil {
		return core.ErrPermissionDenied
	}
	if isSuper {
		return nil
	}
	actorRole, err := actor.GroupRole(ctx, groupID)
	if err != nil {
		return core.ErrPermissionDenied
	}
	if access.RolePriority(role) > access.RolePriority(actorRole) {
		return ErrRoleTooHigh
	}
	return nil
}

// RemoveMember removes a member ranking below the actor from the group.
func (svc *Service) RemoveMember(ctx context.Context, actor access.Actor, groupID, userID string) error {
	if userID == actor.UserID {
		return svc.Leave(ctx, actor, groupID)
	}
	if err := access.RequireGroup(ctx, actor, groupID, access.RoleAdmin); err != nil {
		return err
	}
	mbr, err := svc.repo.GetMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if mbr.Role == access.RoleTopAdmin {
		return ErrTopAdminCannotBeRemoved
	}

	isSuper, err := actor.IsSuperAdmin(ctx)
	if err != nil {
		return core.ErrPermissionDenied
	}
	if !isSuper {
		actorRole, err := actor.GroupRole(ctx, groupID)
		if err != nil {
			return core.ErrPermissionDenied
		}
		if access.RolePriority(mbr.Role) >= access.RolePriority(actorRole) {
			return core.ErrPermissionDenied
		}
	}
	return svc.repo.DeleteMember(ctx, groupID, userID)
}

func (svc *Service) Leave(ctx context.Context, actor access.Actor, groupID string) error {
	mbr, err := svc.repo.GetMember(ctx, groupID, actor.UserID)
	if err != nil {
		if errors.Cause(err) == ErrMemberNotFound {
			return access.ErrNotMember
		}
		return err
	}
	if mbr.Role == access.RoleTopAdmin {
		return ErrTopAdminCannotLeave
	}
	if err = svc.repo.DeleteMember(ctx, groupID, actor.UserID); err != nil {
		return err
	}
	actor.Refresh()
	return nil
}

// RequestJoin moves the actor from `none` to `pending` for the group.
func (svc *Service) RequestJoin(ctx context.Context, actor access.Actor, groupID string) (JoinRequest, error) {
	if _, err := svc.repo.GetGroup(ctx, groupID); err != nil {
		return JoinRequest{}, err
	}
	if _, err := svc.repo.GetMember(ctx, groupID, actor.UserID); err == nil {
		return JoinRequest{}, ErrAlreadyMember
	} else if errors.Cause(err) != ErrMemberNotFound {
		return JoinRequest{}, errors.Wrap(err, "finding membership")
	}

	req, err := svc.repo.CreateJoinRequest(ctx, JoinRequest{
		GroupID:   groupID,
		UserID:    actor.UserID,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		if errors.Cause(err) == ErrRequestAlreadySent {
			return JoinRequest{}, ErrRequestAlreadySent
		}
		return JoinRequest{}, errors.Wrap(err, "creating join request")
	}
	return req, nil
}

// WithdrawJoin deletes the actor's request, only while it is pending.
func (svc *Service) WithdrawJoin(ctx context.Context, actor access.Actor, groupID string) error {
	return svc.repo.DeletePendingJoinRequest(ctx, groupID, actor.UserID)
}

func (svc *Service) JoinStatus(ctx context.Context, actor access.Actor, groupID string) (JoinStatus, error) {
	mbr, err := svc.repo.GetMember(ctx, groupID, actor.UserID)
	if err == nil {
		return JoinStatus{State: JoinMember, Role: mbr.Role}, nil
	} else if errors.Cause(err) != ErrMemberNotFound {
		return JoinStatus{}, errors.Wrap(err, "finding membership")
	}

	req, err := svc.repo.LatestJoinRequest(ctx, groupID, actor.UserID)
	if err != nil {
		if errors.Cause(err) == ErrJoinRequestNotFound {
			return JoinStatus{State: JoinNone}, nil
		}
		return JoinStatus{}, errors.Wrap(err, "finding join request")
	}
	switch req.Status {
	case StatusPending:
		return JoinStatus{State: JoinPending, Request: &req}, nil
	case StatusRejected:
		return JoinStatus{State: JoinRejected, Request: &req}, nil
	default: // approved, then left or was removed
		return JoinStatus{State: JoinNone}, nil
	}
}

func (svc *Service) PendingJoinRequests(ctx context.Context, actor access.Actor, groupID string) ([]JoinRequest, error) {
	if err := access.RequireGroup(ctx, actor, groupID, access.RoleAdmin); err != nil {
		return nil, err
	}
	return svc.repo.QueryJoinRequests(ctx, groupID, StatusPending)
}

// ApproveJoin adds the requester to the group as student and marks the request approved, atomically.
// Only super admins respond to join requests. Approving an already approved request is a no-op.
func (svc *Service) ApproveJoin(ctx context.Context, actor access.Actor, requestID, note string) (JoinRequest, error) {
	if err := access.RequireSuperAdmin(ctx, actor); err != nil {
		return JoinRequest{}, err
	}
	var req JoinRequest
	var err error
	var approved bool
	err = svc.tx.RunInTx(ctx, func(ctx context.Context) error {
		req, err = svc.repo.GetJoinRequest(ctx, requestID)
		if err != nil {
			return err
		}
		switch req.Status {
		case StatusApproved:
			return nil
		case StatusRejected:
			return ErrRequestResponded
		}

		now := time.Now().UTC()
		if _, err = svc.repo.AddMember(ctx, Member{
			GroupID:  req.GroupID,
			UserID:   req.UserID,
			Role:     access.RoleStudent,
			JoinedAt: now,
		}); err != nil && errors.Cause(err) != ErrAlreadyMember {
			return errors.Wrap(err, "adding member")
		}

		req.Status = StatusApproved
		req.Response = nullString(core.CleanString(note))
		req.RespondedAt = null.TimeFrom(now)
		if req, err = svc.repo.UpdateJoinRequest(ctx, req); err != nil {
			return errors.Wrap(err, "updating join request")
		}
		approved = true
		return nil
	})
	if err != nil {
		return JoinRequest{}, err
	}
	if approved {
		svc.notifyJoinResponse(req)
	}
	return req, nil
}

// RejectJoin marks a pending request rejected, by a super admin. A reason is mandatory.
func (svc *Service) RejectJoin(ctx context.Context, actor access.Actor, requestID, reason string) (JoinRequest, error) {
	if err := access.RequireSuperAdmin(ctx, actor); err != nil {
		return JoinRequest{}, err
	}
	reason = core.CleanString(reason)
	if reason == "" {
		return JoinRequest{}, ErrReasonRequired
	}
	req, err := svc.repo.GetJoinRequest(ctx, requestID)
	if err != nil {
		return JoinRequest{}, err
	}
	if req.Status != StatusPending {
		return JoinRequest{}, ErrRequestResponded
	}

	req.Status = StatusRejected
	req.Response = null.StringFrom(reason)
	req.RespondedAt = null.TimeFrom(time.Now().UTC())
	if req, err = svc.repo.UpdateJoinRequest(ctx, req); err != nil {
		return JoinRequest{}, errors.Wrap(err, "updating join request")
	}
	svc.notifyJoinResponse(req)
	return req, nil
}

// SubmitCreationRequest asks the super admins to create a group.
// Blank fields are filled from the completed intake session, if any.
func (svc *Service) SubmitCreationRequest(ctx context.Context, actor access.Actor, nr NewCreationRequest) (CreationRequest, error) {
	nr.clean()
	sender, err := svc.users.GetUser(ctx, actor.UserID)
	if err != nil {
		return CreationRequest{}, errors.Wrap(err, "finding sender")
	}

	req := CreationRequest{
		SenderID:    sender.ID,
		SenderEmail: sender.Email,
		Transcript:  core.Transcript{},
		Status:      StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if nr.SessionID != "" && svc.intake != nil {
		intake, err := svc.intake.CompletedIntake(ctx, nr.SessionID, actor.UserID)
		if err != nil {
			return CreationRequest{}, err
		}
		req.Transcript = intake.Transcript
		req.SessionID = null.StringFrom(nr.SessionID)
		nr.GroupName = firstNonBlank(nr.GroupName, intake.GroupName)
		nr.Description = firstNonBlank(nr.Description, intake.Summary, intake.Description)
		nr.InstituteName = firstNonBlank(nr.InstituteName, intake.InstituteName)
		nr.Department = firstNonBlank(nr.Department, intake.Department)
	}
	if nr.GroupName == "" {
		return CreationRequest{}, core.NewValidationError(nil, core.FieldError{
			Field: "requested_group_name",
			Error: "this field cannot be blank",
		})
	}
	req.RequestedGroupName = nr.GroupName
	req.Description = nullString(nr.Description)
	req.InstituteName = nullString(nr.InstituteName)
	req.Department = nullString(nr.Department)

	req, err = svc.repo.CreateCreationRequest(ctx, req)
	return req, errors.Wrap(err, "creating group creation request")
}

// CreationRequests lists every request for super admins and the actor's own otherwise.
func (svc *Service) CreationRequests(ctx context.Context, actor access.Actor, status RequestStatus) ([]CreationRequest, error) {
	if status != "" && !status.IsValid() {
		return nil, core.NewInvalidError(fmt.Sprintf("unknown status %q", status))
	}
	senderID := actor.UserID
	if isSuper, err := actor.IsSuperAdmin(ctx); err == nil && isSuper {
		senderID = ""
	}
	return svc.repo.QueryCreationRequests(ctx, senderID, status)
}

// ApproveCreationRequest creates the requested group owned by the requester and marks the request
// approved, in a single transaction. Approving an already approved request is a no-op.
func (svc *Service) ApproveCreationRequest(ctx context.Context, actor access.Actor, requestID, note string) (CreationRequest, error) {
	if err := access.RequireSuperAdmin(ctx, actor); err != nil {
		return CreationRequest{}, err
	}
	req, err := svc.repo.GetCreationRequest(ctx, requestID)
	if err != nil {
		return CreationRequest{}, err
	}
	switch req.Status {
	case StatusApproved:
		return req, nil
	case StatusRejected:
		return CreationRequest{}, ErrRequestResponded
	}

	sender, err := svc.users.GetUserByEmail(ctx, core.CleanString(req.SenderEmail, true /* lower */))
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return CreationRequest{}, ErrSenderNotFound
		}
		return CreationRequest{}, errors.Wrap(err, "finding sender")
	}

	var approved bool
	err = svc.tx.RunInTx(ctx, func(ctx context.Context) error {
		req, err = svc.repo.GetCreationRequest(ctx, requestID)
		if err != nil {
			return err
		}
		switch req.Status {
		case StatusApproved:
			return nil
		case StatusRejected:
			return ErrRequestResponded
		}

		grp, err := svc.createOwnedGroup(ctx, Group{
			Name:          req.RequestedGroupName,
			Description:   req.Description,
			InstituteName: req.InstituteName,
			Department:    req.Department,
			TopAdminID:    sender.ID,
		})
		if err != nil {
			return err
		}

		req.Status = StatusApproved
		req.GroupID = null.StringFrom(grp.ID)
		req.Response = nullString(core.CleanString(note))
		req.RespondedAt = null.TimeFrom(time.Now().UTC())
		if req, err = svc.repo.UpdateCreationRequest(ctx, req); err != nil {
			return errors.Wrap(err, "updating group creation request")
		}
		approved = true
		return nil
	})
	if err != nil {
		return CreationRequest{}, err
	}
	if approved {
		svc.notifyCreationResponse(req)
	}
	return req, nil
}

// RejectCreationRequest marks a pending request rejected. A reason is mandatory.
func (svc *Service) RejectCreationRequest(ctx context.Context, actor access.Actor, requestID, reason string) (CreationRequest, error) {
	reason = core.CleanString(reason)
	if reason == "" {
		return CreationRequest{}, ErrReasonRequired
	}
	if err := access.RequireSuperAdmin(ctx, actor); err != nil {
		return CreationRequest{}, err
	}
	req, err := svc.repo.GetCreationRequest(ctx, requestID)
	if err != nil {
		return CreationRequest{}, err
	}
	if req.Status != StatusPending {
		return CreationRequest{}, ErrRequestResponded
	}

	req.Status = StatusRejected
	req.Response = null.StringFrom(reason)
	req.RespondedAt = null.TimeFrom(time.Now().UTC())
	if req, err = svc.repo.UpdateCreationRequest(ctx, req); err != nil {
		return CreationRequest{}, errors.Wrap(err, "updating group creation request")
	}
	svc.notifyCreationResponse(req)
	return req, nil
}

type membershipReader struct {
	repo Repository
}

var _ access.MembershipReader = (*membershipReader)(nil)

// NewMembershipReader adapts the repository for the role resolver.
func NewMembershipReader(repo Repository) access.MembershipReader {
	return membershipReader{repo: repo}
}

func (r membershipReader) MemberRoles(ctx context.Context, userID string) ([]access.Role, error) {
	return r.repo.MemberRoles(ctx, userID)
}

func (r membershipReader) MemberRole(ctx context.Context, groupID, userID string) (access.Role, error) {
	mbr, err := r.repo.GetMember(ctx, groupID, userID)
	if err != nil {
		if errors.Cause(err) == ErrMemberNotFound {
			return "", access.ErrNotMember
		}
		return "", err
	}
	return mbr.Role, nil
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = core.CleanString(v); v != "" {
			return v
		}
	}
	return ""
}

// Notifications

type responseMailData struct {
	Name      string
	Kind      string
	GroupName string
	GroupID   string
	Note      string
}

func (svc *Service) sendResponseMail(usr user.User, status RequestStatus, data responseMailData) {
	tmpl, verb := "request_approved", "approved"
	if status == StatusRejected {
		tmpl, verb = "request_rejected", "rejected"
	}
	data.Name = usr.DisplayName()
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.DisplayName(), Address: usr.Email}},
		Subject:      fmt.Sprintf("Your %s has been %s", data.Kind, verb),
		TemplateName: tmpl,
		TemplateData: data,
	})
}

func (svc *Service) notifyJoinResponse(req JoinRequest) {
	svc.jobs.Dispatch("group.notifyJoinResponse", func(ctx context.Context) error {
		usr, err := svc.users.GetUser(ctx, req.UserID)
		if err != nil {
			return errors.Wrap(err, "finding requester")
		}
		grp, err := svc.repo.GetGroup(ctx, req.GroupID)
		if err != nil {
			return errors.Wrap(err, "finding group")
		}
		svc.sendResponseMail(usr, req.Status, responseMailData{
			Kind:      "request to join",
			GroupName: grp.Name,
			GroupID:   grp.ID,
			Note:      req.Response.String,
		})
		return nil
	})
}

func (svc *Service) notifyCreationResponse(req CreationRequest) {
	svc.jobs.Dispatch("group.notifyCreationResponse", func(ctx context.Context) error {
		usr, err := svc.users.GetUser(ctx, req.SenderID)
		if err != nil {
			return errors.Wrap(err, "finding requester")
		}
		svc.sendResponseMail(usr, req.Status, responseMailData{
			Kind:      "group creation request",
			GroupName: req.RequestedGroupName,
			GroupID:   req.GroupID.String,
			Note:      req.Response.String,
		})
		return nil
	})
}
