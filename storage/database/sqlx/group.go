package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/tasksphere/core/access"
	"github.com/trezcool/tasksphere/core/group"
)

const (
	groupColumns           = `id, name, description, institute_name, department, top_admin_id, created_at`
	memberColumns          = `group_id, user_id, role, joined_at`
	joinRequestColumns     = `id, group_id, user_id, status, response, created_at, responded_at`
	creationRequestColumns = `id, sender_id, sender_email, requested_group_name, description, institute_name, department,
		transcript, session_id, status, response, responded_at, group_id, created_at`
)

type groupRepository struct {
	db *DB
}

var _ group.Repository = (*groupRepository)(nil)

func NewGroupRepository(db *DB) group.Repository {
	return &groupRepository{db: db}
}

func (repo *groupRepository) CreateGroup(ctx context.Context, grp group.Group) (group.Group, error) {
	if grp.ID == "" {
		grp.ID = newID()
	}
	_, err := sqlx.NamedExecContext(ctx, repo.db.exec(ctx), `
		INSERT INTO "group" (`+groupColumns+`)
		VALUES (:id, :name, :description, :institute_name, :department, :top_admin_id, :created_at)`,
		grp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return group.Group{}, group.ErrNameTaken
		}
		return group.Group{}, errors.Wrap(err, "inserting group")
	}
	return grp, nil
}

func (repo *groupRepository) GetGroup(ctx context.Context, id string) (group.Group, error) {
	if !isUUID(id) {
		return group.Group{}, group.ErrNotFound
	}
	var grp group.Group
	err := sqlx.GetContext(ctx, repo.db.exec(ctx), &grp, `SELECT `+groupColumns+` FROM "group" WHERE id = $1`, id)
	if err != nil {
		return group.Group{}, trapNoRowsErr(err, group.ErrNotFound, "finding group")
	}
	grp.CreatedAt = grp.CreatedAt.UTC()
	return grp, nil
}

func (repo *groupRepository) QueryGroups(ctx context.Context, filter *group.QueryFilter) ([]group.Group, error) {
	q := `SELECT ` + groupColumns + ` FROM "group"`
	var args []interface{}
	if filter != nil && filter.Search != "" {
		q += ` WHERE name ILIKE $1 OR institute_name ILIKE $1`
		args = append(args, "%"+filter.Search+"%")
	}
	q += ` ORDER BY LOWER(name)`

	groups := make([]group.Group, 0)
	if err := sqlx.SelectContext(ctx, repo.db.exec(ctx), &groups, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying groups")
	}
	return groups, nil
}

func (repo *groupRepository) UpdateGroup(ctx context.Context, grp group.Group) (group.Group, error) {
	if !isUUID(grp.ID) {
		return group.Group{}, group.ErrNotFound
	}
	res, err := sqlx.NamedExecContext(ctx, repo.db.exec(ctx), `
		UPDATE "group"
		SET name = :name, description = :description, institute_name = :institute_name,
			department = :department, top_admin_id = :top_admin_id
		WHERE id = :id`,
		grp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return group.Group{}, group.ErrNameTaken
		}
		return group.Group{}, errors.Wrap(err, "updating group")
	}
	if err = checkAffected(res, group.ErrNotFound); err != nil {
		return group.Group{}, err
	}
	return grp, nil
}

func (repo *groupRepository) GroupsForUser(ctx context.Context, userID string) ([]group.UserGroup, error) {
	groups := make([]group.UserGroup, 0)
	err := sqlx.SelectContext(ctx, repo.db.exec(ctx), &groups, `
		SELECT g.id, g.name, g.description, g.institute_name, g.department, g.top_admin_id, g.created_at, m.role
		FROM group_member m
		JOIN "group" g ON g.id = m.group_id
		WHERE m.user_id = $1
		ORDER BY LOWER(g.name)`,
		userID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying user groups")
	}
	return groups, nil
}

func (repo *groupRepository) AddMember(ctx context.Context, mbr group.Member) (group.Member, error) {
	if !isUUID(mbr.GroupID) {
		return group.Member{}, group.ErrNotFound
	}
	// an existing membership must not abort the surrounding transaction
	res, err := sqlx.NamedExecContext(ctx, repo.db.exec(ctx), `
		INSERT INTO group_member (`+memberColumns+`) VALUES (:group_id, :user_id, :role, :joined_at)
		ON CONFLICT (group_id, user_id) DO NOTHING`,
		mbr,
	)
	switch {
	case err == nil:
		if err = checkAffected(res, group.ErrAlreadyMember); err != nil {
			return group.Member{}, err
		}
		return mbr, nil
	case isForeignKeyViolation(err):
		return group.Member{}, group.ErrNotFound
	default:
		return group.Member{}, errors.Wrap(err, "inserting member")
	}
}

func (repo *groupRepository) GetMember(ctx context.Context, groupID, userID string) (group.Member, error) {
	if !isUUID(groupID) {
		return group.Member{}, group.ErrMemberNotFound
	}
	var mbr group.Member
	err := sqlx.GetContext(ctx, repo.db.exec(ctx), &mbr,
		`SELECT `+memberColumns+` FROM group_member WHERE group_id = $1 AND user_id = $2`,
		groupID, userID,
	)
	if err != nil {
		return group.Member{}, trapNoRowsErr(err, group.ErrMemberNotFound, "finding member")
	}
	mbr.JoinedAt = mbr.JoinedAt.UTC()
	return mbr, nil
}

func (repo *groupRepository) MemberRoles(ctx context.Context, userID string) ([]access.Role, error) {
	roles := make([]access.Role, 0)
	err := sqlx.SelectContext(ctx, repo.db.exec(ctx), &roles, `SELECT role FROM group_member WHERE user_id = $1`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying member roles")
	}
	return roles, nil
}

func (repo *groupRepository) QueryMembers(ctx context.Context, groupID string) ([]group.MemberInfo, error) {
	members := make([]group.MemberInfo, 0)
	if !isUUID(groupID) {
		return members, nil
	}
	err := sqlx.SelectContext(ctx, repo.db.exec(ctx), &members, `
		SELECT m.group_id, m.user_id, m.role, m.joined_at, u.email, u.full_name, u.avatar_url
		FROM group_member m
		JOIN "user" u ON u.id = m.user_id
		WHERE m.group_id = $1
		ORDER BY CASE m.role WHEN 'top_admin' THEN 0 WHEN 'admin' THEN 1 ELSE 2 END, m.joined_at`,
		groupID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying members")
	}
	return members, nil
}

func (repo *groupRepository) UpdateMember(ctx context.Context, mbr group.Member) (group.Member, error) {
	if !isUUID(mbr.GroupID) {
		return group.Member{}, group.ErrMemberNotFound
	}
	var updated group.Member
	err := sqlx.GetContext(ctx, repo.db.exec(ctx), &updated, `
		UPDATE group_member SET role = $3 WHERE group_id = $1 AND user_id = $2
		RETURNING `+memberColumns,
		mbr.GroupID, mbr.UserID, mbr.Role,
	)
	if err != nil {
		return group.Member{}, trapNoRowsErr(err, group.ErrMemberNotFound, "updating member")
	}
	updated.JoinedAt = updated.JoinedAt.UTC()
	return updated, nil
}

func (repo *groupRepository) DeleteMember(ctx context.Context, groupID, userID string) error {
	if !isUUID(groupID) {
		return group.ErrMemberNotFound
	}
	res, err := repo.db.exec(ctx).ExecContext(ctx,
		`DELETE FROM group_member WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	if err != nil {
		return errors.Wrap(err, "deleting member")
	}
	return checkAffected(res, group.ErrMemberNotFound)
}

func (repo *groupRepository) CreateJoinRequest(ctx context.Context, req group.JoinRequest) (group.JoinRequest, error) {
	if !isUUID(req.GroupID) {
		return group.JoinRequest{}, group.ErrNotFound
	}
	if req.ID == "" {
		req.ID = newID()
	}
	_, err := sqlx.NamedExecContext(ctx, repo.db.exec(ctx), `
		INSERT INTO group_request (`+joinRequestColumns+`)
		VALUES (:id, :group_id, :user_id, :status, :response, :created_at, :responded_at)`,
		req,
	)
	switch {
	case err == nil:
		return req, nil
	case isUniqueViolation(err):
		return group.JoinRequest{}, group.ErrRequestAlreadySent
	case isForeignKeyViolation(err):
		return group.JoinRequest{}, group.ErrNotFound
	default:
		return group.JoinRequest{}, errors.Wrap(err, "inserting join request")
	}
}

func (repo *groupRepository) getJoinRequest(ctx context.Context, where string, args ...interface{}) (group.JoinRequest, error) {
	var req group.JoinRequest
	err := sqlx.GetContext(ctx, repo.db.exec(ctx), &req, `SELECT `+joinRequestColumns+` FROM group_request WHERE `+where, args...)
	if err != nil {
		return group.JoinRequest{}, trapNoRowsErr(err, group.ErrJoinRequestNotFound, "finding join request")
	}
	req.CreatedAt = req.CreatedAt.UTC()
	return req, nil
}

func (repo *groupRepository) GetJoinRequest(ctx context.Context, id string) (group.JoinRequest, error) {
	if !isUUID(id) {
		return group.JoinRequest{}, group.ErrJoinRequestNotFound
	}
	return repo.getJoinRequest(ctx, `id = $1`, id)
}

func (repo *groupRepository) LatestJoinRequest(ctx context.Context, groupID, userID string) (group.JoinRequest, error) {
	if !isUUID(groupID) {
		return group.JoinRequest{}, group.ErrJoinRequestNotFound
	}
	return repo.getJoinRequest(ctx, `group_id = $1 AND user_id = $2 ORDER BY created_at DESC LIMIT 1`, groupID, userID)
}

func (repo *groupRepository) QueryJoinRequests(ctx context.Context, groupID string, status group.RequestStatus) ([]group.JoinRequest, error) {
	reqs := make([]group.JoinRequest, 0)
	if !isUUID(groupID) {
		return reqs, nil
	}
	err := sqlx.SelectContext(ctx, repo.db.exec(ctx), &reqs, `
		SELECT `+joinRequestColumns+` FROM group_request
		WHERE group_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at`,
		groupID, string(status),
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying join requests")
	}
	return reqs, nil
}

func (repo *groupRepository) UpdateJoinRequest(ctx context.Context, req group.JoinRequest) (group.JoinRequest, error) {
	if !isUUID(req.ID) {
		return group.JoinRequest{}, group.ErrJoinRequestNotFound
	}
	res, err := sqlx.NamedExecContext(ctx, repo.db.exec(ctx), `
		UPDATE group_request SET status = :status, response = :response, responded_at = :responded_at
		WHERE id = :id`,
		req,
	)
	if err != nil {
		return group.JoinRequest{}, errors.Wrap(err, "updating join request")
	}
	if err = checkAffected(res, group.ErrJoinRequestNotFound); err != nil {
		return group.JoinRequest{}, err
	}
	return req, nil
}

func (repo *groupRepository) DeletePendingJoinRequest(ctx context.Context, groupID, userID string) error {
	if !isUUID(groupID) {
		return group.ErrJoinRequestNotFound
	}
	res, err := repo.db.exec(ctx).ExecContext(ctx,
		`DELETE FROM group_request WHERE group_id = $1 AND user_id = $2 AND status = $3`,
		groupID, userID, group.StatusPending,
	)
	if err != nil {
		return errors.Wrap(err, "deleting join request")
	}
	return checkAffected(res, group.ErrJoinRequestNotFound)
}

func (repo *groupRepository) CreateCreationRequest(ctx context.Context, req group.CreationRequest) (group.CreationRequest, error) {
	if req.ID == "" {
		req.ID = newID()
	}
	_, err := sqlx.NamedExecContext(ctx, repo.db.exec(ctx), `
		INSERT INTO group_creation_message (`+creationRequestColumns+`)
		VALUES (:id, :sender_id, :sender_email, :requested_group_name, :description, :institute_name, :department,
			:transcript, :session_id, :status, :response, :responded_at, :group_id, :created_at)`,
		req,
	)
	if err != nil {
		return group.CreationRequest{}, errors.Wrap(err, "inserting group creation request")
	}
	return req, nil
}

func (repo *groupRepository) GetCreationRequest(ctx context.Context, id string) (group.CreationRequest, error) {
	if !isUUID(id) {
		return group.CreationRequest{}, group.ErrCreationRequestNotFound
	}
	var req group.CreationRequest
	err := sqlx.GetContext(ctx, repo.db.exec(ctx), &req,
		`SELECT `+creationRequestColumns+` FROM group_creation_message WHERE id = $1`, id)
	if err != nil {
		return group.CreationRequest{}, trapNoRowsErr(err, group.ErrCreationRequestNotFound, "finding group creation request")
	}
	req.CreatedAt = req.CreatedAt.UTC()
	return req, nil
}

func (repo *groupRepository) QueryCreationRequests(ctx context.Context, senderID string, status group.RequestStatus) ([]group.CreationRequest, error) {
	reqs := make([]group.CreationRequest, 0)
	err := sqlx.SelectContext(ctx, repo.db.exec(ctx), &reqs, `
		SELECT `+creationRequestColumns+` FROM group_creation_message
		WHERE ($1 = '' OR sender_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC`,
		senderID, string(status),
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying group creation requests")
	}
	return reqs, nil
}

func (repo *groupRepository) UpdateCreationRequest(ctx context.Context, req group.CreationRequest) (group.CreationRequest, error) {
	if !isUUID(req.ID) {
		return group.CreationRequest{}, group.ErrCreationRequestNotFound
	}
	res, err := sqlx.NamedExecContext(ctx, repo.db.exec(ctx), `
		UPDATE group_creation_message
		SET status = :status, response = :response, responded_at = :responded_at, group_id = :group_id
		WHERE id = :id`,
		req,
	)
	if err != nil {
		return group.CreationRequest{}, errors.Wrap(err, "updating group creation request")
	}
	if err = checkAffected(res, group.ErrCreationRequestNotFound); err != nil {
		return group.CreationRequest{}, err
	}
	return req, nil
}
