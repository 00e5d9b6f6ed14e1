package service

import (
	"context"
	"errors"
	"strings"

	"github.com/tartampluch/rappel-anniv/internal/auth"
	"github.com/tartampluch/rappel-anniv/internal/config"
	"github.com/tartampluch/rappel-anniv/internal/domain"
)

// CreateGroup creates a group led by its creator.
func (s *Service) CreateGroup(ctx context.Context, actor domain.User, in domain.GroupInput) (domain.Group, error) {
	if err := in.Validate(); err != nil {
		return domain.Group{}, err
	}
	secret, err := hashJoinSecret(in.Password)
	if err != nil {
		return domain.Group{}, err
	}

	g, err := s.store.CreateGroup(ctx, domain.Group{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Password:    secret,
		CreatedAt:   s.clock.Now().UTC(),
	}, actor.ID)
	if err != nil {
		return domain.Group{}, err
	}

	s.log.Info(config.MsgGroupCreated,
		config.LogKeyGroupID, g.ID,
		config.LogKeyUserID, actor.ID)
	return g, nil
}

func hashJoinSecret(secret string) (string, error) {
	if secret == "" {
		return "", nil
	}
	return auth.HashPassword(secret)
}

// ListGroups returns the groups the actor belongs to, or every group for an
// administrator.
func (s *Service) ListGroups(ctx context.Context, actor domain.User) ([]domain.Group, error) {
	if actor.IsAdmin() {
		return s.store.ListGroups(ctx)
	}
	return s.store.ListGroupsByUser(ctx, actor.ID)
}

func (s *Service) GetGroup(ctx context.Context, actor domain.User, groupID int64) (domain.Group, error) {
	return s.requireMember(ctx, actor, groupID)
}

func (s *Service) UpdateGroup(ctx context.Context, actor domain.User, groupID int64, patch domain.GroupPatch) (domain.Group, error) {
	g, err := s.requireLeader(ctx, actor, groupID)
	if err != nil {
		return domain.Group{}, err
	}
	if patch.Password != nil {
		secret, err := hashJoinSecret(*patch.Password)
		if err != nil {
			return domain.Group{}, err
		}
		patch.Password = &secret
	}
	g, err = patch.Apply(g)
	if err != nil {
		return domain.Group{}, err
	}
	g.Name = strings.TrimSpace(g.Name)
	if err := s.store.UpdateGroup(ctx, g); err != nil {
		return domain.Group{}, withKey(err, domain.ErrNotFound, config.TKeyErrGroupNotFound)
	}
	return g, nil
}

// DeleteGroup removes the group together with its birthdays and memberships.
func (s *Service) DeleteGroup(ctx context.Context, actor domain.User, groupID int64) error {
	if _, err := s.requireLeader(ctx, actor, groupID); err != nil {
		return err
	}
	if err := s.store.DeleteGroup(ctx, groupID); err != nil {
		return withKey(err, domain.ErrNotFound, config.TKeyErrGroupNotFound)
	}
	s.log.Info(config.MsgGroupDeleted,
		config.LogKeyGroupID, groupID,
		config.LogKeyUserID, actor.ID)
	return nil
}

// AddMember adds a user, found by id or email, to the group.
func (s *Service) AddMember(ctx context.Context, actor domain.User, groupID int64, in domain.MemberInput) (domain.Membership, error) {
	if err := in.Validate(); err != nil {
		return domain.Membership{}, err
	}
	if _, err := s.requireLeader(ctx, actor, groupID); err != nil {
		return domain.Membership{}, err
	}

	var (
		u   domain.User
		err error
	)
	if in.UserID > 0 {
		u, err = s.store.GetUser(ctx, in.UserID)
	} else {
		u, err = s.store.GetUserByEmail(ctx, domain.Credentials{Email: in.Email}.Normalize().Email)
	}
	if err != nil {
		return domain.Membership{}, withKey(err, domain.ErrNotFound, config.TKeyErrUserNotFound)
	}

	m, err := s.store.AddMember(ctx, domain.Membership{UserID: u.ID, GroupID: groupID, IsLeader: in.IsLeader})
	if err != nil {
		return domain.Membership{}, withKey(err, domain.ErrConflict, config.TKeyErrAlreadyMember)
	}
	s.log.Info(config.MsgMemberAdded,
		config.LogKeyGroupID, groupID,
		config.LogKeyUserID, u.ID)
	return m, nil
}

func (s *Service) ListMembers(ctx context.Context, actor domain.User, groupID int64) ([]domain.Member, error) {
	if _, err := s.requireMember(ctx, actor, groupID); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, groupID)
}

// RemoveMember removes userID from the group. Members may always remove
// themselves; removing someone else takes a leader or an administrator.
func (s *Service) RemoveMember(ctx context.Context, actor domain.User, groupID, userID int64) error {
	var err error
	if userID == actor.ID {
		_, err = s.requireMember(ctx, actor, groupID)
	} else {
		_, err = s.requireLeader(ctx, actor, groupID)
	}
	if err != nil {
		return err
	}

	if err := s.store.RemoveMember(ctx, groupID, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Errorf(domain.ErrNotFound, config.TKeyErrMemberNotFound)
		}
		return err
	}
	s.log.Info(config.MsgMemberRemoved,
		config.LogKeyGroupID, groupID,
		config.LogKeyUserID, userID)
	return nil
}
