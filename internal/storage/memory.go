package storage

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/tartampluch/rappel-anniv/internal/domain"
)

// MemoryStore is a Store kept in process memory. Data is lost on restart.
type MemoryStore struct {
	mu          sync.RWMutex
	nextID      int64
	users       map[int64]domain.User
	groups      map[int64]domain.Group
	memberships map[int64]domain.Membership
	birthdays   map[int64]domain.Birthday
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[int64]domain.User),
		groups:      make(map[int64]domain.Group),
		memberships: make(map[int64]domain.Membership),
		birthdays:   make(map[int64]domain.Birthday),
	}
}

func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

// sortedValues returns the map values ordered by key, which is insertion order.
func sortedValues[T any](m map[int64]T, keep func(T) bool) []T {
	keys := make([]int64, 0, len(m))
	for k, v := range m {
		if keep == nil || keep(v) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

func (s *MemoryStore) CreateUser(_ context.Context, u domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return domain.User{}, domain.ErrConflict
		}
	}
	u.ID = s.id()
	s.users[u.ID] = u
	return u, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id int64) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.users, nil), nil
}

func (s *MemoryStore) UpdateUserRole(_ context.Context, id int64, role domain.Role) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	u.Role = role
	s.users[id] = u
	return u, nil
}

func (s *MemoryStore) UpdateUserPassword(_ context.Context, id int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.PasswordHash = passwordHash
	s.users[id] = u
	return nil
}

func (s *MemoryStore) CreateGroup(_ context.Context, g domain.Group, leaderID int64) (domain.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[leaderID]; !ok {
		return domain.Group{}, domain.ErrNotFound
	}
	g.ID = s.id()
	s.groups[g.ID] = g
	m := domain.Membership{ID: s.id(), UserID: leaderID, GroupID: g.ID, IsLeader: true}
	s.memberships[m.ID] = m
	return g, nil
}

func (s *MemoryStore) GetGroup(_ context.Context, id int64) (domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return domain.Group{}, domain.ErrNotFound
	}
	return g, nil
}

func (s *MemoryStore) ListGroups(_ context.Context) ([]domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.groups, nil), nil
}

func (s *MemoryStore) ListGroupsByUser(_ context.Context, userID int64) ([]domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	member := make(map[int64]bool)
	for _, m := range s.memberships {
		if m.UserID == userID {
			member[m.GroupID] = true
		}
	}
	return sortedValues(s.groups, func(g domain.Group) bool { return member[g.ID] }), nil
}

func (s *MemoryStore) UpdateGroup(_ context.Context, g domain.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.groups[g.ID]
	if !ok {
		return domain.ErrNotFound
	}
	g.CreatedAt = existing.CreatedAt
	s.groups[g.ID] = g
	return nil
}

func (s *MemoryStore) DeleteGroup(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return domain.ErrNotFound
	}
	for bid, b := range s.birthdays {
		if b.GroupID == id {
			delete(s.birthdays, bid)
		}
	}
	for mid, m := range s.memberships {
		if m.GroupID == id {
			delete(s.memberships, mid)
		}
	}
	delete(s.groups, id)
	return nil
}

func (s *MemoryStore) AddMember(_ context.Context, m domain.Membership) (domain.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[m.GroupID]; !ok {
		return domain.Membership{}, domain.ErrNotFound
	}
	if _, ok := s.users[m.UserID]; !ok {
		return domain.Membership{}, domain.ErrNotFound
	}
	for _, existing := range s.memberships {
		if existing.GroupID == m.GroupID && existing.UserID == m.UserID {
			return domain.Membership{}, domain.ErrConflict
		}
	}
	m.ID = s.id()
	s.memberships[m.ID] = m
	return m, nil
}

func (s *MemoryStore) GetMembership(_ context.Context, groupID, userID int64) (domain.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.memberships {
		if m.GroupID == groupID && m.UserID == userID {
			return m, nil
		}
	}
	return domain.Membership{}, domain.ErrNotFound
}

func (s *MemoryStore) ListMembers(_ context.Context, groupID int64) ([]domain.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Member
	for _, m := range sortedValues(s.memberships, func(m domain.Membership) bool { return m.GroupID == groupID }) {
		u := s.users[m.UserID]
		out = append(out, domain.Member{Membership: m, Username: u.Username, Email: u.Email})
	}
	return out, nil
}

func (s *MemoryStore) ListMemberships(_ context.Context, userID int64) ([]domain.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.memberships, func(m domain.Membership) bool { return m.UserID == userID }), nil
}

func (s *MemoryStore) RemoveMember(_ context.Context, groupID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, m := range s.memberships {
		if m.GroupID == groupID && m.UserID == userID {
			delete(s.memberships, id)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *MemoryStore) CreateBirthday(_ context.Context, b domain.Birthday) (domain.Birthday, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[b.GroupID]; !ok {
		return domain.Birthday{}, domain.ErrNotFound
	}
	b.ID = s.id()
	s.birthdays[b.ID] = b
	return b, nil
}

func (s *MemoryStore) CreateBirthdays(_ context.Context, list []domain.Birthday) ([]domain.Birthday, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range list {
		if _, ok := s.groups[b.GroupID]; !ok {
			return nil, domain.ErrNotFound
		}
	}
	out := make([]domain.Birthday, len(list))
	for i, b := range list {
		b.ID = s.id()
		s.birthdays[b.ID] = b
		out[i] = b
	}
	return out, nil
}

func (s *MemoryStore) GetBirthday(_ context.Context, id int64) (domain.Birthday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.birthdays[id]
	if !ok {
		return domain.Birthday{}, domain.ErrNotFound
	}
	return b, nil
}

func (s *MemoryStore) ListBirthdaysByGroups(_ context.Context, groupIDs []int64) ([]domain.Birthday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.birthdays, func(b domain.Birthday) bool {
		return slices.Contains(groupIDs, b.GroupID)
	}), nil
}

func (s *MemoryStore) SearchBirthdays(_ context.Context, groupIDs []int64, query string) ([]domain.Birthday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return matchByName(sortedValues(s.birthdays, func(b domain.Birthday) bool {
		return slices.Contains(groupIDs, b.GroupID)
	}), query), nil
}

func (s *MemoryStore) UpdateBirthday(_ context.Context, b domain.Birthday) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.birthdays[b.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if _, ok := s.groups[b.GroupID]; !ok {
		return domain.ErrNotFound
	}
	b.CreatedAt = existing.CreatedAt
	b.CreatedBy = existing.CreatedBy
	s.birthdays[b.ID] = b
	return nil
}

func (s *MemoryStore) DeleteBirthday(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.birthdays[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.birthdays, id)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
