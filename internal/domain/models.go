// Package domain holds the entities of the birthday service and their input
// validation.
package domain

import (
	"strings"
	"time"
)

// Role is the account-wide permission level of a user.
type Role string

const (
	RoleAdmin       Role = "ADMIN"
	RoleGroupLeader Role = "GROUP_LEADER"
	RoleMember      Role = "MEMBER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleGroupLeader, RoleMember:
		return true
	}
	return false
}

type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
}

// IsAdmin bypasses every group membership check.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type Group struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Password    string    `json:"-"` // optional join secret
	CreatedAt   time.Time `json:"createdAt"`
}

type Membership struct {
	ID       int64 `json:"id"`
	UserID   int64 `json:"userId"`
	GroupID  int64 `json:"groupId"`
	IsLeader bool  `json:"isLeader"`
}

// Member is a membership joined with its user, as listed for a group.
type Member struct {
	Membership
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Birthday is a person whose birthday is tracked inside a group.
type Birthday struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	// BirthDate is a civil date at midnight UTC. When YearKnown is false the
	// year is a placeholder and only month and day are meaningful.
	BirthDate time.Time `json:"-"`
	YearKnown bool      `json:"yearKnown"`
	Notes     string    `json:"notes"`
	GroupID   int64     `json:"groupId"`
	CreatedAt time.Time `json:"createdAt"`
	CreatedBy int64     `json:"createdBy"`
}

// UpcomingBirthday is a Birthday annotated with its next occurrence.
type UpcomingBirthday struct {
	Birthday
	NextOccurrence time.Time
	DaysUntil      int
	// AgeNext is the age turned on NextOccurrence, zero when the year is unknown.
	AgeNext int
}

type Stats struct {
	TotalBirthdays    int `json:"totalBirthdays"`
	TotalGroups       int `json:"totalGroups"`
	UpcomingBirthdays int `json:"upcomingBirthdays"`
}

// UsernameFromEmail derives the default username from the local part.
func UsernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
