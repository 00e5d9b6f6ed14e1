// Package service implements the use cases of the birthday service: accounts,
// groups, memberships, birthdays, upcoming queries, vCard import and the
// calendar feed. Callers pass the authenticated user explicitly; every
// operation enforces the group access rules, and administrators bypass them.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tartampluch/rappel-anniv/internal/auth"
	"github.com/tartampluch/rappel-anniv/internal/config"
	"github.com/tartampluch/rappel-anniv/internal/domain"
	"github.com/tartampluch/rappel-anniv/internal/engine"
	"github.com/tartampluch/rappel-anniv/internal/i18n"
	"github.com/tartampluch/rappel-anniv/internal/metrics"
	"github.com/tartampluch/rappel-anniv/internal/storage"
)

// Deps are the collaborators of a Service. Store, Sessions and Translator
// are required.
type Deps struct {
	Store      storage.Store
	Sessions   auth.SessionStore
	Translator *i18n.Translator
	Clock      engine.Clock        // defaults to engine.RealClock
	Fetcher    engine.VCardFetcher // defaults to engine.NewHTTPFetcher
	Metrics    *metrics.Metrics    // defaults to a private registry
}

type Service struct {
	store      storage.Store
	sessions   auth.SessionStore
	translator *i18n.Translator
	clock      engine.Clock
	fetcher    engine.VCardFetcher
	metrics    *metrics.Metrics
	log        *slog.Logger
}

func New(d Deps) *Service {
	if d.Clock == nil {
		d.Clock = engine.RealClock{}
	}
	if d.Fetcher == nil {
		d.Fetcher = engine.NewHTTPFetcher()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	return &Service{
		store:      d.Store,
		sessions:   d.Sessions,
		translator: d.Translator,
		clock:      d.Clock,
		fetcher:    d.Fetcher,
		metrics:    d.Metrics,
		log:        slog.With(config.LogKeyComponent, config.CompService),
	}
}

// Ping checks the storage backend.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// withKey gives a bare storage sentinel of the given kind a client-facing
// message key. Other errors pass through.
func withKey(err, kind error, key string) error {
	if err == nil {
		return nil
	}
	if _, ok := domain.MessageKey(err); ok {
		return err
	}
	if errors.Is(err, kind) {
		return domain.Errorf(kind, key)
	}
	return err
}

func requireAdmin(actor domain.User) error {
	if !actor.IsAdmin() {
		return domain.Errorf(domain.ErrForbidden, config.TKeyErrForbidden)
	}
	return nil
}

// groupAccess loads the group and the actor's membership in it. Non-members
// get domain.ErrForbidden; administrators get a zero membership.
func (s *Service) groupAccess(ctx context.Context, actor domain.User, groupID int64) (domain.Group, domain.Membership, error) {
	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return domain.Group{}, domain.Membership{}, withKey(err, domain.ErrNotFound, config.TKeyErrGroupNotFound)
	}
	if actor.IsAdmin() {
		return g, domain.Membership{}, nil
	}
	m, err := s.store.GetMembership(ctx, groupID, actor.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Group{}, domain.Membership{}, domain.Errorf(domain.ErrForbidden, config.TKeyErrGroupForbidden)
	}
	if err != nil {
		return domain.Group{}, domain.Membership{}, err
	}
	return g, m, nil
}

func (s *Service) requireMember(ctx context.Context, actor domain.User, groupID int64) (domain.Group, error) {
	g, _, err := s.groupAccess(ctx, actor, groupID)
	return g, err
}

func (s *Service) requireLeader(ctx context.Context, actor domain.User, groupID int64) (domain.Group, error) {
	g, m, err := s.groupAccess(ctx, actor, groupID)
	if err != nil {
		return domain.Group{}, err
	}
	if !actor.IsAdmin() && !m.IsLeader {
		return domain.Group{}, domain.Errorf(domain.ErrForbidden, config.TKeyErrGroupForbidden)
	}
	return g, nil
}

// accessibleGroupIDs lists the groups whose birthdays the actor may read.
func (s *Service) accessibleGroupIDs(ctx context.Context, actor domain.User) ([]int64, error) {
	if actor.IsAdmin() {
		groups, err := s.store.ListGroups(ctx)
		if err != nil {
			return nil, err
		}
		ids := make([]int64, len(groups))
		for i, g := range groups {
			ids[i] = g.ID
		}
		return ids, nil
	}
	memberships, err := s.store.ListMemberships(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(memberships))
	for i, m := range memberships {
		ids[i] = m.GroupID
	}
	return ids, nil
}
