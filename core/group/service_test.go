package group_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tasksphere/core"
	"github.com/trezcool/tasksphere/core/access"
	"github.com/trezcool/tasksphere/core/group"
	"github.com/trezcool/tasksphere/testutil"
)

var errBoom = errors.New("boom")

// failingRepo fails the request updates, after the membership/group writes of an approval.
type failingRepo struct {
	group.Repository
}

func (failingRepo) UpdateJoinRequest(context.Context, group.JoinRequest) (group.JoinRequest, error) {
	return group.JoinRequest{}, errBoom
}

func (failingRepo) UpdateCreationRequest(context.Context, group.CreationRequest) (group.CreationRequest, error) {
	return group.CreationRequest{}, errBoom
}

func TestService_joinWorkflow(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	root := env.CreateUser(t, "root", "root@x.com", "Root", true)
	owner := env.CreateUser(t, "owner", "owner@x.com", "Owner", false)
	stud := env.CreateUser(t, "u1", "u1@x.com", "Student One", false)
	grp := env.CreateGroup(t, "Physics 101", owner)

	status, err := env.GroupSvc.JoinStatus(ctx, env.Actor(stud), grp.ID)
	require.NoError(t, err)
	assert.Equal(t, group.JoinNone, status.State)

	req, err := env.GroupSvc.RequestJoin(ctx, env.Actor(stud), grp.ID)
	require.NoError(t, err)
	assert.Equal(t, group.StatusPending, req.Status)

	t.Run("second request while pending", func(t *testing.T) {
		_, err := env.GroupSvc.RequestJoin(ctx, env.Actor(stud), grp.ID)
		assert.Equal(t, group.ErrRequestAlreadySent, err)

		reqs, err := env.GroupSvc.PendingJoinRequests(ctx, env.Actor(owner), grp.ID)
		require.NoError(t, err)
		assert.Len(t, reqs, 1)
	})

	status, err = env.GroupSvc.JoinStatus(ctx, env.Actor(stud), grp.ID)
	require.NoError(t, err)
	assert.Equal(t, group.JoinPending, status.State)

	t.Run("students cannot see requests", func(t *testing.T) {
		_, err := env.GroupSvc.PendingJoinRequests(ctx, env.Actor(stud), grp.ID)
		assert.Equal(t, access.ErrNotMember, err)
	})

	t.Run("only super admins respond", func(t *testing.T) {
		_, err := env.GroupSvc.ApproveJoin(ctx, env.Actor(owner), req.ID, "")
		assert.Equal(t, core.ErrPermissionDenied, err)
		_, err = env.GroupSvc.RejectJoin(ctx, env.Actor(owner), req.ID, "no")
		assert.Equal(t, core.ErrPermissionDenied, err)
		_, err = env.GroupSvc.ApproveJoin(ctx, env.Actor(stud), req.ID, "")
		assert.Equal(t, core.ErrPermissionDenied, err)
	})

	req, err = env.GroupSvc.ApproveJoin(ctx, env.Actor(root), req.ID, "  welcome ")
	require.NoError(t, err)
	assert.Equal(t, group.StatusApproved, req.Status)
	assert.Equal(t, "welcome", req.Response.String)
	assert.True(t, req.RespondedAt.Valid)

	mbr, err := env.GroupRepo.GetMember(ctx, grp.ID, stud.ID)
	require.NoError(t, err)
	assert.Equal(t, access.RoleStudent, mbr.Role)

	status, err = env.GroupSvc.JoinStatus(ctx, env.Actor(stud), grp.ID)
	require.NoError(t, err)
	assert.Equal(t, group.JoinMember, status.State)
	assert.Equal(t, access.RoleStudent, status.Role)

	sent := env.Mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "u1@x.com", sent[0].To[0].Address)
	assert.Equal(t, "Your request to join has been approved", sent[0].Subject)
	assert.Contains(t, sent[0].TextContent, "welcome")

	t.Run("approving twice is a no-op", func(t *testing.T) {
		again, err := env.GroupSvc.ApproveJoin(ctx, env.Actor(root), req.ID, "again")
		require.NoError(t, err)
		assert.Equal(t, "welcome", again.Response.String)
		assert.Len(t, env.Mail.SentMessages(), 1)
	})

	t.Run("already a member", func(t *testing.T) {
		_, err := env.GroupSvc.RequestJoin(ctx, env.Actor(stud), grp.ID)
		assert.Equal(t, group.ErrAlreadyMember, err)
	})

	t.Run("withdrawing an approved request", func(t *testing.T) {
		err := env.GroupSvc.WithdrawJoin(ctx, env.Actor(stud), grp.ID)
		assert.Equal(t, group.ErrJoinRequestNotFound, err)
	})
}

func TestService_WithdrawJoin(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	owner := env.CreateUser(t, "owner", "owner@x.com", "", false)
	stud := env.CreateUser(t, "stud", "stud@x.com", "", false)
	grp := env.CreateGroup(t, "Chemistry", owner)

	_, err := env.GroupSvc.RequestJoin(ctx, env.Actor(stud), grp.ID)
	require.NoError(t, err)
	require.NoError(t, env.GroupSvc.WithdrawJoin(ctx, env.Actor(stud), grp.ID))

	status, err := env.GroupSvc.JoinStatus(ctx, env.Actor(stud), grp.ID)
	require.NoError(t, err)
	assert.Equal(t, group.JoinNone, status.State)

	assert.Equal(t, group.ErrJoinRequestNotFound, env.GroupSvc.WithdrawJoin(ctx, env.Actor(stud), grp.ID))
}

func TestService_RejectJoin(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	root := env.CreateUser(t, "root", "root@x.com", "", true)
	owner := env.CreateUser(t, "owner", "owner@x.com", "", false)
	stud := env.CreateUser(t, "stud", "stud@x.com", "", false)
	grp := env.CreateGroup(t, "Biology", owner)

	req, err := env.GroupSvc.RequestJoin(ctx, env.Actor(stud), grp.ID)
	require.NoError(t, err)

	for _, reason := range []string{"", "   "} {
		_, err = env.GroupSvc.RejectJoin(ctx, env.Actor(root), req.ID, reason)
		assert.Equal(t, group.ErrReasonRequired, err)
	}

	rejected, err := env.GroupSvc.RejectJoin(ctx, env.Actor(root), req.ID, "group is full")
	require.NoError(t, err)
	assert.Equal(t, group.StatusRejected, rejected.Status)
	assert.Equal(t, "group is full", rejected.Response.String)

	_, err = env.GroupSvc.ApproveJoin(ctx, env.Actor(root), req.ID, "")
	assert.Equal(t, group.ErrRequestResponded, err)

	status, err := env.GroupSvc.JoinStatus(ctx, env.Actor(stud), grp.ID)
	require.NoError(t, err)
	assert.Equal(t, group.JoinRejected, status.State)

	// withdrawing a rejected request fails, requesting again is allowed
	assert.Equal(t, group.ErrJoinRequestNotFound, env.GroupSvc.WithdrawJoin(ctx, env.Actor(stud), grp.ID))
	_, err = env.GroupSvc.RequestJoin(ctx, env.Actor(stud), grp.ID)
	assert.NoError(t, err)

	sent := env.Mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].TextContent, "group is full")
}

func TestService_ApproveJoin_rollback(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	root := env.CreateUser(t, "root", "root@x.com", "", true)
	owner := env.CreateUser(t, "owner", "owner@x.com", "", false)
	stud := env.CreateUser(t, "stud", "stud@x.com", "", false)
	grp := env.CreateGroup(t, "History", owner)
	req, err := env.GroupSvc.RequestJoin(ctx, env.Actor(stud), grp.ID)
	require.NoError(t, err)

	svc := group.NewService(failingRepo{env.GroupRepo}, env.UserRepo, env.DB, env.Mail, env.Jobs, env.Logger)
	_, err = svc.ApproveJoin(ctx, env.Actor(root), req.ID, "")
	require.Error(t, err)

	_, err = env.GroupRepo.GetMember(ctx, grp.ID, stud.ID)
	assert.Equal(t, group.ErrMemberNotFound, err, "the membership must be rolled back")
	req, err = env.GroupRepo.GetJoinRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, group.StatusPending, req.Status)
	assert.Empty(t, env.Mail.SentMessages())
}

func TestService_ApproveCreationRequest(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	super := env.CreateUser(t, "super", "super@x.com", "Super", true)
	applicant := env.CreateUser(t, "a", "a@x.com", "Applicant", false)

	req, err := env.GroupSvc.SubmitCreationRequest(ctx, env.Actor(applicant), group.NewCreationRequest{
		GroupName:     "  Algebra Circle ",
		InstituteName: "MIT",
	})
	require.NoError(t, err)
	assert.Equal(t, "Algebra Circle", req.RequestedGroupName)
	assert.Equal(t, "a@x.com", req.SenderEmail)
	assert.Equal(t, group.StatusPending, req.Status)

	t.Run("only super admins approve", func(t *testing.T) {
		_, err := env.GroupSvc.ApproveCreationRequest(ctx, env.Actor(applicant), req.ID, "")
		assert.Equal(t, core.ErrPermissionDenied, err)
	})

	approved, err := env.GroupSvc.ApproveCreationRequest(ctx, env.Actor(super), req.ID, "enjoy")
	require.NoError(t, err)
	assert.Equal(t, group.StatusApproved, approved.Status)
	assert.True(t, approved.RespondedAt.Valid)
	require.True(t, approved.GroupID.Valid)

	grp, err := env.GroupRepo.GetGroup(ctx, approved.GroupID.String)
	require.NoError(t, err)
	assert.Equal(t, "Algebra Circle", grp.Name)
	assert.Equal(t, "MIT", grp.InstituteName.String)
	assert.Equal(t, applicant.ID, grp.TopAdminID)

	mbr, err := env.GroupRepo.GetMember(ctx, grp.ID, applicant.ID)
	require.NoError(t, err)
	assert.Equal(t, access.RoleTopAdmin, mbr.Role)

	role, err := env.Actor(applicant).GlobalRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, access.RoleTopAdmin, role)

	sent := env.Mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "a@x.com", sent[0].To[0].Address)

	t.Run("approving twice is a no-op", func(t *testing.T) {
		again, err := env.GroupSvc.ApproveCreationRequest(ctx, env.Actor(super), req.ID, "")
		require.NoError(t, err)
		assert.Equal(t, approved.GroupID, again.GroupID)
		groups, err := env.GroupSvc.Query(ctx, &group.QueryFilter{Search: "algebra"})
		require.NoError(t, err)
		assert.Len(t, groups, 1)
	})

	t.Run("name taken", func(t *testing.T) {
		dup, err := env.GroupSvc.SubmitCreationRequest(ctx, env.Actor(applicant), group.NewCreationRequest{GroupName: "algebra circle"})
		require.NoError(t, err)
		_, err = env.GroupSvc.ApproveCreationRequest(ctx, env.Actor(super), dup.ID, "")
		assert.Equal(t, group.ErrNameTaken, err)
	})
}

func TestService_ApproveCreationRequest_errors(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	super := env.CreateUser(t, "super", "super@x.com", "", true)
	applicant := env.CreateUser(t, "a", "a@x.com", "", false)

	t.Run("rollback", func(t *testing.T) {
		req, err := env.GroupSvc.SubmitCreationRequest(ctx, env.Actor(applicant), group.NewCreationRequest{GroupName: "Geometry"})
		require.NoError(t, err)

		svc := group.NewService(failingRepo{env.GroupRepo}, env.UserRepo, env.DB, env.Mail, env.Jobs, env.Logger)
		_, err = svc.ApproveCreationRequest(ctx, env.Actor(super), req.ID, "")
		require.Error(t, err)

		groups, err := env.GroupSvc.Query(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, groups, "the group must be rolled back")
		groups2, err := env.GroupSvc.ListForUser(ctx, env.Actor(applicant))
		require.NoError(t, err)
		assert.Empty(t, groups2)
	})

	t.Run("sender not found", func(t *testing.T) {
		req, err := env.GroupRepo.CreateCreationRequest(ctx, group.CreationRequest{
			SenderID:           "ghost",
			SenderEmail:        "ghost@x.com",
			RequestedGroupName: "Ghosts",
			Transcript:         core.Transcript{},
			Status:             group.StatusPending,
			CreatedAt:          time.Now().UTC(),
		})
		require.NoError(t, err)
		_, err = env.GroupSvc.ApproveCreationRequest(ctx, env.Actor(super), req.ID, "")
		assert.Equal(t, group.ErrSenderNotFound, err)
	})

	t.Run("reject requires a reason", func(t *testing.T) {
		req, err := env.GroupSvc.SubmitCreationRequest(ctx, env.Actor(applicant), group.NewCreationRequest{GroupName: "Trigonometry"})
		require.NoError(t, err)

		_, err = env.GroupSvc.RejectCreationRequest(ctx, env.Actor(super), req.ID, " ")
		assert.Equal(t, group.ErrReasonRequired, err)

		rejected, err := env.GroupSvc.RejectCreationRequest(ctx, env.Actor(super), req.ID, "duplicate of Geometry")
		require.NoError(t, err)
		assert.Equal(t, group.StatusRejected, rejected.Status)

		_, err = env.GroupSvc.ApproveCreationRequest(ctx, env.Actor(super), req.ID, "")
		assert.Equal(t, group.ErrRequestResponded, err)
	})

	t.Run("blank group name", func(t *testing.T) {
		_, err := env.GroupSvc.SubmitCreationRequest(ctx, env.Actor(applicant), group.NewCreationRequest{GroupName: "  "})
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "requested_group_name", vErr.Fields[0].Field)
	})
}

func TestService_CreationRequests_visibility(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	super := env.CreateUser(t, "super", "super@x.com", "", true)
	alice := env.CreateUser(t, "alice", "alice@x.com", "", false)
	bob := env.CreateUser(t, "bob", "bob@x.com", "", false)

	for _, usr := range []struct {
		name string
		id   string
	}{{"Alice's group", alice.ID}, {"Bob's group", bob.ID}} {
		usr := usr
		actor := env.Resolver.Actor(core.Principal{UserID: usr.id})
		_, err := env.GroupSvc.SubmitCreationRequest(ctx, actor, group.NewCreationRequest{GroupName: usr.name})
		require.NoError(t, err)
	}

	all, err := env.GroupSvc.CreationRequests(ctx, env.Actor(super), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	own, err := env.GroupSvc.CreationRequests(ctx, env.Actor(alice), group.StatusPending)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "Alice's group", own[0].RequestedGroupName)

	_, err = env.GroupSvc.CreationRequests(ctx, env.Actor(alice), "unknown")
	assert.True(t, core.HasCode(err, core.CodeInvalid))
}

func TestService_ChangeMemberRole(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	owner := env.CreateUser(t, "owner", "owner@x.com", "", false)
	adm := env.CreateUser(t, "adm", "adm@x.com", "", false)
	stud := env.CreateUser(t, "stud", "stud@x.com", "", false)
	grp := env.CreateGroup(t, "Maths", owner)
	env.AddMember(t, grp.ID, adm.ID, access.RoleAdmin)
	env.AddMember(t, grp.ID, stud.ID, access.RoleStudent)

	tests := []struct {
		name    string
		actorID string
		userID  string
		role    access.Role
		wantErr error
	}{
		{name: "invalid role", actorID: owner.ID, userID: stud.ID, role: access.RoleSuperAdmin, wantErr: group.ErrInvalidRole},
		{name: "admins cannot change roles", actorID: adm.ID, userID: stud.ID, role: access.RoleAdmin, wantErr: core.ErrPermissionDenied},
		{name: "top admin role", actorID: owner.ID, userID: owner.ID, role: access.RoleAdmin, wantErr: group.ErrTopAdminRoleChange},
		{name: "unknown member", actorID: owner.ID, userID: "nobody", role: access.RoleAdmin, wantErr: group.ErrMemberNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			actor := env.Resolver.Actor(core.Principal{UserID: tc.actorID})
			_, err := env.GroupSvc.ChangeMemberRole(ctx, actor, grp.ID, tc.userID, tc.role)
			assert.Equal(t, tc.wantErr, err)
		})
	}

	mbr, err := env.GroupSvc.ChangeMemberRole(ctx, env.Actor(owner), grp.ID, stud.ID, access.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, access.RoleAdmin, mbr.Role)

	t.Run("ownership transfer", func(t *testing.T) {
		mbr, err := env.GroupSvc.ChangeMemberRole(ctx, env.Actor(owner), grp.ID, adm.ID, access.RoleTopAdmin)
		require.NoError(t, err)
		assert.Equal(t, access.RoleTopAdmin, mbr.Role)

		prev, err := env.GroupRepo.GetMember(ctx, grp.ID, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, access.RoleAdmin, prev.Role)

		g, err := env.GroupSvc.Get(ctx, grp.ID)
		require.NoError(t, err)
		assert.Equal(t, adm.ID, g.TopAdminID)
	})
}

func TestService_RemoveMember(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	owner := env.CreateUser(t, "owner", "owner@x.com", "", false)
	adm1 := env.CreateUser(t, "adm1", "adm1@x.com", "", false)
	adm2 := env.CreateUser(t, "adm2", "adm2@x.com", "", false)
	stud := env.CreateUser(t, "stud", "stud@x.com", "", false)
	super := env.CreateUser(t, "super", "super@x.com", "", true)
	grp := env.CreateGroup(t, "Art", owner)
	env.AddMember(t, grp.ID, adm1.ID, access.RoleAdmin)
	env.AddMember(t, grp.ID, adm2.ID, access.RoleAdmin)
	env.AddMember(t, grp.ID, stud.ID, access.RoleStudent)

	assert.Equal(t, core.ErrPermissionDenied, env.GroupSvc.RemoveMember(ctx, env.Actor(adm1), grp.ID, adm2.ID), "peers cannot remove each other")
	assert.Equal(t, group.ErrTopAdminCannotBeRemoved, env.GroupSvc.RemoveMember(ctx, env.Actor(super), grp.ID, owner.ID))
	assert.Equal(t, group.ErrTopAdminCannotLeave, env.GroupSvc.Leave(ctx, env.Actor(owner), grp.ID))
	assert.Equal(t, core.ErrPermissionDenied, env.GroupSvc.RemoveMember(ctx, env.Actor(stud), grp.ID, adm1.ID))

	require.NoError(t, env.GroupSvc.RemoveMember(ctx, env.Actor(adm1), grp.ID, stud.ID))
	require.NoError(t, env.GroupSvc.RemoveMember(ctx, env.Actor(super), grp.ID, adm2.ID))
	require.NoError(t, env.GroupSvc.Leave(ctx, env.Actor(adm1), grp.ID))

	members, err := env.GroupSvc.Members(ctx, env.Actor(owner), grp.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, owner.ID, members[0].UserID)
	assert.Equal(t, "owner@x.com", members[0].Email)
}

func TestService_Create(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	super := env.CreateUser(t, "super", "super@x.com", "", true)
	usr := env.CreateUser(t, "usr", "usr@x.com", "", false)

	_, err := env.GroupSvc.Create(ctx, env.Actor(usr), group.NewGroup{Name: "Nope"})
	assert.Equal(t, core.ErrPermissionDenied, err)

	grp, err := env.GroupSvc.Create(ctx, env.Actor(super), group.NewGroup{Name: " Literature ", Department: "Arts"})
	require.NoError(t, err)
	assert.Equal(t, "Literature", grp.Name)
	assert.Equal(t, super.ID, grp.TopAdminID)

	_, err = env.GroupSvc.Create(ctx, env.Actor(super), group.NewGroup{Name: "LITERATURE"})
	assert.Equal(t, group.ErrNameTaken, err)

	groups, err := env.GroupSvc.ListForUser(ctx, env.Actor(super))
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, access.RoleTopAdmin, groups[0].Role)
	assert.True(t, strings.EqualFold(groups[0].Name, "literature"))
}

func TestScenario_signInThenJoin(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	super := env.CreateUser(t, "super", "super@x.com", "", true)
	owner := env.CreateUser(t, "owner", "owner@x.com", "", false)
	g1 := env.CreateGroup(t, "g1", owner)

	u1, err := env.UserSvc.Sync(ctx, core.Principal{UserID: "u1", Email: "u1@x.com"})
	require.NoError(t, err)
	assert.False(t, u1.IsSuperAdmin)

	actor := env.Actor(u1)
	role, err := actor.GlobalRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, access.RoleStudent, role)

	req, err := env.GroupSvc.RequestJoin(ctx, actor, g1.ID)
	require.NoError(t, err)
	assert.Equal(t, g1.ID, req.GroupID)
	assert.Equal(t, "u1", req.UserID)
	assert.Equal(t, group.StatusPending, req.Status)

	req, err = env.GroupSvc.ApproveJoin(ctx, env.Actor(super), req.ID, "welcome")
	require.NoError(t, err)
	assert.Equal(t, group.StatusApproved, req.Status)

	mbr, err := env.GroupRepo.GetMember(ctx, g1.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, access.RoleStudent, mbr.Role)
}
