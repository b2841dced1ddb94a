package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/tasksphere/core/access"
	"github.com/trezcool/tasksphere/core/group"
)

type groupRepository struct {
	db *DB
}

var _ group.Repository = (*groupRepository)(nil)

func NewGroupRepository(db *DB) group.Repository {
	return &groupRepository{db: db}
}

func (repo *groupRepository) CreateGroup(ctx context.Context, grp group.Group) (group.Group, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		for _, g := range t.groups {
			if strings.EqualFold(g.Name, grp.Name) {
				return group.ErrNameTaken
			}
		}
		if grp.ID == "" {
			grp.ID = newID()
		}
		t.groups[grp.ID] = grp
		return nil
	})
	if err != nil {
		return group.Group{}, err
	}
	return grp, nil
}

func (repo *groupRepository) GetGroup(_ context.Context, id string) (group.Group, error) {
	var grp group.Group
	err := repo.db.read(func(t *tables) error {
		g, ok := t.groups[id]
		if !ok {
			return group.ErrNotFound
		}
		grp = g
		return nil
	})
	return grp, err
}

func (repo *groupRepository) QueryGroups(_ context.Context, filter *group.QueryFilter) ([]group.Group, error) {
	groups := make([]group.Group, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, g := range t.groups {
			if filter != nil && filter.Search != "" {
				search := strings.ToLower(filter.Search)
				if !strings.Contains(strings.ToLower(g.Name), search) &&
					!strings.Contains(strings.ToLower(g.InstituteName.String), search) {
					continue
				}
			}
			groups = append(groups, g)
		}
		return nil
	})
	sort.Slice(groups, func(i, j int) bool { return strings.ToLower(groups[i].Name) < strings.ToLower(groups[j].Name) })
	return groups, nil
}

func (repo *groupRepository) UpdateGroup(ctx context.Context, grp group.Group) (group.Group, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.groups[grp.ID]; !ok {
			return group.ErrNotFound
		}
		for _, g := range t.groups {
			if g.ID != grp.ID && strings.EqualFold(g.Name, grp.Name) {
				return group.ErrNameTaken
			}
		}
		t.groups[grp.ID] = grp
		return nil
	})
	if err != nil {
		return group.Group{}, err
	}
	return grp, nil
}

func (repo *groupRepository) GroupsForUser(_ context.Context, userID string) ([]group.UserGroup, error) {
	groups := make([]group.UserGroup, 0)
	_ = repo.db.read(func(t *tables) error {
		for k, mbr := range t.members {
			if k.userID != userID {
				continue
			}
			if g, ok := t.groups[k.groupID]; ok {
				groups = append(groups, group.UserGroup{Group: g, Role: mbr.Role})
			}
		}
		return nil
	})
	sort.Slice(groups, func(i, j int) bool { return strings.ToLower(groups[i].Name) < strings.ToLower(groups[j].Name) })
	return groups, nil
}

func (repo *groupRepository) AddMember(ctx context.Context, mbr group.Member) (group.Member, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		key := memberKey{mbr.GroupID, mbr.UserID}
		if _, ok := t.members[key]; ok {
			return group.ErrAlreadyMember
		}
		if _, ok := t.groups[mbr.GroupID]; !ok {
			return group.ErrNotFound
		}
		t.members[key] = mbr
		return nil
	})
	if err != nil {
		return group.Member{}, err
	}
	return mbr, nil
}

func (repo *groupRepository) GetMember(_ context.Context, groupID, userID string) (group.Member, error) {
	var mbr group.Member
	err := repo.db.read(func(t *tables) error {
		m, ok := t.members[memberKey{groupID, userID}]
		if !ok {
			return group.ErrMemberNotFound
		}
		mbr = m
		return nil
	})
	return mbr, err
}

func (repo *groupRepository) MemberRoles(_ context.Context, userID string) ([]access.Role, error) {
	roles := make([]access.Role, 0)
	_ = repo.db.read(func(t *tables) error {
		for k, mbr := range t.members {
			if k.userID == userID {
				roles = append(roles, mbr.Role)
			}
		}
		return nil
	})
	return roles, nil
}

func (repo *groupRepository) QueryMembers(_ context.Context, groupID string) ([]group.MemberInfo, error) {
	members := make([]group.MemberInfo, 0)
	_ = repo.db.read(func(t *tables) error {
		for k, mbr := range t.members {
			if k.groupID != groupID {
				continue
			}
			info := group.MemberInfo{Member: mbr}
			if usr, ok := t.users[k.userID]; ok {
				info.Email = usr.Email
				info.FullName = usr.FullName
				info.AvatarURL = usr.AvatarURL
			}
			members = append(members, info)
		}
		return nil
	})
	sort.Slice(members, func(i, j int) bool {
		pi, pj := access.RolePriority(members[i].Role), access.RolePriority(members[j].Role)
		if pi != pj {
			return pi > pj
		}
		return members[i].JoinedAt.Before(members[j].JoinedAt)
	})
	return members, nil
}

func (repo *groupRepository) UpdateMember(ctx context.Context, mbr group.Member) (group.Member, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		key := memberKey{mbr.GroupID, mbr.UserID}
		orig, ok := t.members[key]
		if !ok {
			return group.ErrMemberNotFound
		}
		orig.Role = mbr.Role
		t.members[key] = orig
		mbr = orig
		return nil
	})
	if err != nil {
		return group.Member{}, err
	}
	return mbr, nil
}

func (repo *groupRepository) DeleteMember(ctx context.Context, groupID, userID string) error {
	return repo.db.write(ctx, func(t *tables) error {
		key := memberKey{groupID, userID}
		if _, ok := t.members[key]; !ok {
			return group.ErrMemberNotFound
		}
		delete(t.members, key)
		return nil
	})
}

func (repo *groupRepository) CreateJoinRequest(ctx context.Context, req group.JoinRequest) (group.JoinRequest, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		if req.Status == group.StatusPending {
			for _, r := range t.joinRequests {
				if r.GroupID == req.GroupID && r.UserID == req.UserID && r.Status == group.StatusPending {
					return group.ErrRequestAlreadySent
				}
			}
		}
		if req.ID == "" {
			req.ID = newID()
		}
		t.joinRequests[req.ID] = req
		return nil
	})
	if err != nil {
		return group.JoinRequest{}, err
	}
	return req, nil
}

func (repo *groupRepository) GetJoinRequest(_ context.Context, id string) (group.JoinRequest, error) {
	var req group.JoinRequest
	err := repo.db.read(func(t *tables) error {
		r, ok := t.joinRequests[id]
		if !ok {
			return group.ErrJoinRequestNotFound
		}
		req = r
		return nil
	})
	return req, err
}

func (repo *groupRepository) LatestJoinRequest(_ context.Context, groupID, userID string) (group.JoinRequest, error) {
	var (
		req   group.JoinRequest
		found bool
	)
	_ = repo.db.read(func(t *tables) error {
		for _, r := range t.joinRequests {
			if r.GroupID == groupID && r.UserID == userID && (!found || r.CreatedAt.After(req.CreatedAt)) {
				req, found = r, true
			}
		}
		return nil
	})
	if !found {
		return group.JoinRequest{}, group.ErrJoinRequestNotFound
	}
	return req, nil
}

func (repo *groupRepository) QueryJoinRequests(_ context.Context, groupID string, status group.RequestStatus) ([]group.JoinRequest, error) {
	reqs := make([]group.JoinRequest, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, r := range t.joinRequests {
			if r.GroupID == groupID && (status == "" || r.Status == status) {
				reqs = append(reqs, r)
			}
		}
		return nil
	})
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].CreatedAt.Before(reqs[j].CreatedAt) })
	return reqs, nil
}

func (repo *groupRepository) UpdateJoinRequest(ctx context.Context, req group.JoinRequest) (group.JoinRequest, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.joinRequests[req.ID]; !ok {
			return group.ErrJoinRequestNotFound
		}
		t.joinRequests[req.ID] = req
		return nil
	})
	if err != nil {
		return group.JoinRequest{}, err
	}
	return req, nil
}

func (repo *groupRepository) DeletePendingJoinRequest(ctx context.Context, groupID, userID string) error {
	return repo.db.write(ctx, func(t *tables) error {
		for id, r := range t.joinRequests {
			if r.GroupID == groupID && r.UserID == userID && r.Status == group.StatusPending {
				delete(t.joinRequests, id)
				return nil
			}
		}
		return group.ErrJoinRequestNotFound
	})
}

func (repo *groupRepository) CreateCreationRequest(ctx context.Context, req group.CreationRequest) (group.CreationRequest, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		if req.ID == "" {
			req.ID = newID()
		}
		t.creationRequests[req.ID] = req
		return nil
	})
	if err != nil {
		return group.CreationRequest{}, err
	}
	return req, nil
}

func (repo *groupRepository) GetCreationRequest(_ context.Context, id string) (group.CreationRequest, error) {
	var req group.CreationRequest
	err := repo.db.read(func(t *tables) error {
		r, ok := t.creationRequests[id]
		if !ok {
			return group.ErrCreationRequestNotFound
		}
		req = r
		return nil
	})
	return req, err
}

func (repo *groupRepository) QueryCreationRequests(_ context.Context, senderID string, status group.RequestStatus) ([]group.CreationRequest, error) {
	reqs := make([]group.CreationRequest, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, r := range t.creationRequests {
			if (senderID == "" || r.SenderID == senderID) && (status == "" || r.Status == status) {
				reqs = append(reqs, r)
			}
		}
		return nil
	})
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].CreatedAt.After(reqs[j].CreatedAt) })
	return reqs, nil
}

func (repo *groupRepository) UpdateCreationRequest(ctx context.Context, req group.CreationRequest) (group.CreationRequest, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.creationRequests[req.ID]; !ok {
			return group.ErrCreationRequestNotFound
		}
		t.creationRequests[req.ID] = req
		return nil
	})
	if err != nil {
		return group.CreationRequest{}, err
	}
	return req, nil
}
