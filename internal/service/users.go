package service

import (
	"context"
	"errors"

	"github.com/tartampluch/rappel-anniv/internal/auth"
	"github.com/tartampluch/rappel-anniv/internal/config"
	"github.com/tartampluch/rappel-anniv/internal/domain"
)

// Register creates a MEMBER account and opens a session for it.
func (s *Service) Register(ctx context.Context, creds domain.Credentials) (domain.User, auth.Session, error) {
	creds = creds.Normalize()
	if err := creds.Validate(); err != nil {
		return domain.User{}, auth.Session{}, err
	}

	if _, err := s.store.GetUserByEmail(ctx, creds.Email); err == nil {
		return domain.User{}, auth.Session{}, domain.Errorf(domain.ErrConflict, config.TKeyErrEmailTaken)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, auth.Session{}, err
	}

	hash, err := auth.HashPassword(creds.Password)
	if err != nil {
		return domain.User{}, auth.Session{}, err
	}
	u, err := s.store.CreateUser(ctx, domain.User{
		Username:     domain.UsernameFromEmail(creds.Email),
		Email:        creds.Email,
		PasswordHash: hash,
		Role:         domain.RoleMember,
	})
	if err != nil {
		return domain.User{}, auth.Session{}, withKey(err, domain.ErrConflict, config.TKeyErrEmailTaken)
	}

	sess, err := s.sessions.Create(ctx, u.ID)
	if err != nil {
		return domain.User{}, auth.Session{}, err
	}

	s.metrics.UsersRegistered.Inc()
	s.log.Info(config.MsgUserRegistered, config.LogKeyUserID, u.ID)
	return u, sess, nil
}

// Login checks credentials and opens a session. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, creds domain.Credentials) (domain.User, auth.Session, error) {
	creds = creds.Normalize()
	badCredentials := domain.Errorf(domain.ErrUnauthorized, config.TKeyErrBadCredentials)

	u, err := s.store.GetUserByEmail(ctx, creds.Email)
	if errors.Is(err, domain.ErrNotFound) {
		s.metrics.LoginsFailed.Inc()
		s.log.Info(config.MsgLoginFailed)
		return domain.User{}, auth.Session{}, badCredentials
	}
	if err != nil {
		return domain.User{}, auth.Session{}, err
	}
	if err := auth.VerifyPassword(creds.Password, u.PasswordHash); err != nil {
		s.metrics.LoginsFailed.Inc()
		s.log.Info(config.MsgLoginFailed, config.LogKeyUserID, u.ID)
		return domain.User{}, auth.Session{}, err
	}

	sess, err := s.sessions.Create(ctx, u.ID)
	if err != nil {
		return domain.User{}, auth.Session{}, err
	}
	s.log.Info(config.MsgUserLoggedIn, config.LogKeyUserID, u.ID)
	return u, sess, nil
}

// Logout ends the session. Unknown identifiers are ignored.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.sessions.Delete(ctx, sessionID)
}

func (s *Service) ListUsers(ctx context.Context, actor domain.User) ([]domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.store.ListUsers(ctx)
}

func (s *Service) UpdateUserRole(ctx context.Context, actor domain.User, userID int64, role domain.Role) (domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.User{}, err
	}
	if !role.Valid() {
		return domain.User{}, domain.Errorf(domain.ErrValidation, config.TKeyErrInvalidRole)
	}
	u, err := s.store.UpdateUserRole(ctx, userID, role)
	if err != nil {
		return domain.User{}, withKey(err, domain.ErrNotFound, config.TKeyErrUserNotFound)
	}
	s.log.Info(config.MsgRoleChanged,
		config.LogKeyUserID, u.ID,
		config.LogKeyRole, string(u.Role))
	return u, nil
}

// EnsureAdmin creates the administrator account, or promotes an existing
// account and resets its password when it no longer matches.
func (s *Service) EnsureAdmin(ctx context.Context, creds domain.Credentials) (domain.User, error) {
	creds = creds.Normalize()
	if err := creds.Validate(); err != nil {
		return domain.User{}, err
	}

	u, err := s.store.GetUserByEmail(ctx, creds.Email)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		hash, err := auth.HashPassword(creds.Password)
		if err != nil {
			return domain.User{}, err
		}
		u, err = s.store.CreateUser(ctx, domain.User{
			Username:     domain.UsernameFromEmail(creds.Email),
			Email:        creds.Email,
			PasswordHash: hash,
			Role:         domain.RoleAdmin,
		})
		if err != nil {
			return domain.User{}, err
		}
	case err != nil:
		return domain.User{}, err
	default:
		if !u.IsAdmin() {
			if u, err = s.store.UpdateUserRole(ctx, u.ID, domain.RoleAdmin); err != nil {
				return domain.User{}, err
			}
		}
		if auth.VerifyPassword(creds.Password, u.PasswordHash) != nil {
			hash, err := auth.HashPassword(creds.Password)
			if err != nil {
				return domain.User{}, err
			}
			if err := s.store.UpdateUserPassword(ctx, u.ID, hash); err != nil {
				return domain.User{}, err
			}
			u.PasswordHash = hash
		}
	}

	s.log.Info(config.MsgAdminReady, config.LogKeyUserID, u.ID)
	return u, nil
}
