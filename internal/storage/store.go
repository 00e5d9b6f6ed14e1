// Package storage persists users, groups, memberships and birthdays.
package storage

import (
	"context"
	"slices"
	"strings"

	"github.com/tartampluch/rappel-anniv/internal/domain"
)

// Store is the persistence contract of the service. Missing rows are
// reported as domain.ErrNotFound and uniqueness violations as
// domain.ErrConflict.
type Store interface {
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdateUserRole(ctx context.Context, id int64, role domain.Role) (domain.User, error)
	UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error

	// CreateGroup stores g together with the leader membership of leaderID,
	// atomically.
	CreateGroup(ctx context.Context, g domain.Group, leaderID int64) (domain.Group, error)
	GetGroup(ctx context.Context, id int64) (domain.Group, error)
	ListGroups(ctx context.Context) ([]domain.Group, error)
	ListGroupsByUser(ctx context.Context, userID int64) ([]domain.Group, error)
	UpdateGroup(ctx context.Context, g domain.Group) error
	// DeleteGroup removes the group with its birthdays and memberships.
	DeleteGroup(ctx context.Context, id int64) error

	AddMember(ctx context.Context, m domain.Membership) (domain.Membership, error)
	GetMembership(ctx context.Context, groupID, userID int64) (domain.Membership, error)
	ListMembers(ctx context.Context, groupID int64) ([]domain.Member, error)
	ListMemberships(ctx context.Context, userID int64) ([]domain.Membership, error)
	RemoveMember(ctx context.Context, groupID, userID int64) error

	CreateBirthday(ctx context.Context, b domain.Birthday) (domain.Birthday, error)
	// CreateBirthdays stores all of list or none of it.
	CreateBirthdays(ctx context.Context, list []domain.Birthday) ([]domain.Birthday, error)
	GetBirthday(ctx context.Context, id int64) (domain.Birthday, error)
	// ListBirthdaysByGroups returns the birthdays of groupIDs ordered by id.
	ListBirthdaysByGroups(ctx context.Context, groupIDs []int64) ([]domain.Birthday, error)
	// SearchBirthdays matches query as a case-insensitive substring of the
	// name, ordered by lowercased name then id. Case folding is Unicode-aware
	// on every backend.
	SearchBirthdays(ctx context.Context, groupIDs []int64, query string) ([]domain.Birthday, error)
	UpdateBirthday(ctx context.Context, b domain.Birthday) error
	DeleteBirthday(ctx context.Context, id int64) error

	Ping(ctx context.Context) error
	Close() error
}

// matchByName filters an id-ordered list down to the names containing query,
// folding case in Go so that accented names behave the same on every backend.
func matchByName(list []domain.Birthday, query string) []domain.Birthday {
	needle := strings.ToLower(query)
	out := make([]domain.Birthday, 0, len(list))
	for _, b := range list {
		if strings.Contains(strings.ToLower(b.Name), needle) {
			out = append(out, b)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Birthday) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return out
}
