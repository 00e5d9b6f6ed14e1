package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/tartampluch/rappel-anniv/internal/config"
	"github.com/tartampluch/rappel-anniv/internal/domain"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// pgUniqueViolation is the SQLSTATE of a unique constraint failure.
const pgUniqueViolation = "23505"

// SQLStore is a Store over database/sql for SQLite and PostgreSQL.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore wraps an open, migrated database handle.
func NewSQLStore(db *sql.DB, dialect Dialect) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &SQLStore{db: db, dialect: dialect}, nil
}

// translate maps driver errors onto the domain sentinels.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
		return fmt.Errorf("%s: %w", op, domain.ErrConflict)
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) && liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return fmt.Errorf("%s: %w", op, domain.ErrConflict)
	}
	return fmt.Errorf("%s: %s: %w", op, config.ErrStoreQuery, err)
}

func (s *SQLStore) exec(ctx context.Context, op, query string, args ...any) (sql.Result, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(query), args...)
	return res, translate(op, err)
}

// execOne fails with domain.ErrNotFound when no row was affected.
func (s *SQLStore) execOne(ctx context.Context, op, query string, args ...any) error {
	res, err := s.exec(ctx, op, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translate(op, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// rowQuerier is satisfied by *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) insert(ctx context.Context, op, query string, args ...any) (int64, error) {
	return s.insertVia(ctx, s.db, op, query, args...)
}

func (s *SQLStore) insertVia(ctx context.Context, q rowQuerier, op, query string, args ...any) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, s.dialect.Rebind(query+" RETURNING id"), args...).Scan(&id)
	return id, translate(op, err)
}

// inTx runs fn in a transaction committed only when fn succeeds.
func (s *SQLStore) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return translate(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return translate(op, tx.Commit())
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(config.TimestampFormatStorage)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(config.TimestampFormatStorage, s)
}

// -----------------------------------------------------------------------------
// Users
// -----------------------------------------------------------------------------

const userColumns = `id, username, email, password_hash, role`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var u domain.User
	var role string
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role); err != nil {
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	return u, nil
}

func (s *SQLStore) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	id, err := s.insert(ctx, "create user",
		`INSERT INTO users (username, email, password_hash, role) VALUES (?, ?, ?, ?)`,
		u.Username, strings.ToLower(u.Email), u.PasswordHash, string(u.Role))
	if err != nil {
		return domain.User{}, err
	}
	u.ID = id
	u.Email = strings.ToLower(u.Email)
	return u, nil
}

func (s *SQLStore) GetUser(ctx context.Context, id int64) (domain.User, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	u, err := scanUser(row)
	return u, translate("get user", err)
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(`SELECT `+userColumns+` FROM users WHERE email = ?`), strings.ToLower(email))
	u, err := scanUser(row)
	return u, translate("get user by email", err)
}

func (s *SQLStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, translate("list users", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, translate("list users", err)
		}
		out = append(out, u)
	}
	return out, translate("list users", rows.Err())
}

func (s *SQLStore) UpdateUserRole(ctx context.Context, id int64, role domain.Role) (domain.User, error) {
	if err := s.execOne(ctx, "update user role", `UPDATE users SET role = ? WHERE id = ?`, string(role), id); err != nil {
		return domain.User{}, err
	}
	return s.GetUser(ctx, id)
}

func (s *SQLStore) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	return s.execOne(ctx, "update user password", `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
}

// -----------------------------------------------------------------------------
// Groups
// -----------------------------------------------------------------------------

const groupColumns = `g.id, g.name, g.description, g.password, g.created_at`

func scanGroup(row rowScanner) (domain.Group, error) {
	var g domain.Group
	var createdAt string
	if err := row.Scan(&g.ID, &g.Name, &g.Description, &g.Password, &createdAt); err != nil {
		return domain.Group{}, err
	}
	t, err := parseTimestamp(createdAt)
	if err != nil {
		return domain.Group{}, err
	}
	g.CreatedAt = t
	return g, nil
}

func (s *SQLStore) queryGroups(ctx context.Context, op, query string, args ...any) ([]domain.Group, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, translate(op, err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, translate(op, err)
		}
		out = append(out, g)
	}
	return out, translate(op, rows.Err())
}

func (s *SQLStore) CreateGroup(ctx context.Context, g domain.Group, leaderID int64) (domain.Group, error) {
	const op = "create group"
	err := s.inTx(ctx, op, func(tx *sql.Tx) error {
		id, err := s.insertVia(ctx, tx, op,
			`INSERT INTO user_groups (name, description, password, created_at) VALUES (?, ?, ?, ?)`,
			g.Name, g.Description, g.Password, formatTimestamp(g.CreatedAt))
		if err != nil {
			return err
		}
		g.ID = id
		_, err = s.insertVia(ctx, tx, op, insertMember, leaderID, id, true)
		return err
	})
	if err != nil {
		return domain.Group{}, err
	}
	return g, nil
}

func (s *SQLStore) GetGroup(ctx context.Context, id int64) (domain.Group, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(`SELECT `+groupColumns+` FROM user_groups g WHERE g.id = ?`), id)
	g, err := scanGroup(row)
	return g, translate("get group", err)
}

func (s *SQLStore) ListGroups(ctx context.Context) ([]domain.Group, error) {
	return s.queryGroups(ctx, "list groups", `SELECT `+groupColumns+` FROM user_groups g ORDER BY g.id`)
}

func (s *SQLStore) ListGroupsByUser(ctx context.Context, userID int64) ([]domain.Group, error) {
	return s.queryGroups(ctx, "list groups by user",
		`SELECT `+groupColumns+` FROM user_groups g
		 JOIN group_members m ON m.group_id = g.id
		 WHERE m.user_id = ? ORDER BY g.id`, userID)
}

func (s *SQLStore) UpdateGroup(ctx context.Context, g domain.Group) error {
	return s.execOne(ctx, "update group",
		`UPDATE user_groups SET name = ?, description = ?, password = ? WHERE id = ?`,
		g.Name, g.Description, g.Password, g.ID)
}

func (s *SQLStore) DeleteGroup(ctx context.Context, id int64) error {
	const op = "delete group"
	return s.inTx(ctx, op, func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM birthdays WHERE group_id = ?`,
			`DELETE FROM group_members WHERE group_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, s.dialect.Rebind(q), id); err != nil {
				return translate(op, err)
			}
		}
		res, err := tx.ExecContext(ctx, s.dialect.Rebind(`DELETE FROM user_groups WHERE id = ?`), id)
		if err != nil {
			return translate(op, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return translate(op, err)
		} else if n == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

// -----------------------------------------------------------------------------
// Memberships
// -----------------------------------------------------------------------------

const insertMember = `INSERT INTO group_members (user_id, group_id, is_leader) VALUES (?, ?, ?)`

func (s *SQLStore) AddMember(ctx context.Context, m domain.Membership) (domain.Membership, error) {
	id, err := s.insert(ctx, "add member", insertMember, m.UserID, m.GroupID, m.IsLeader)
	if err != nil {
		return domain.Membership{}, err
	}
	m.ID = id
	return m, nil
}

func (s *SQLStore) GetMembership(ctx context.Context, groupID, userID int64) (domain.Membership, error) {
	var m domain.Membership
	err := s.db.QueryRowContext(ctx,
		s.dialect.Rebind(`SELECT id, user_id, group_id, is_leader FROM group_members WHERE group_id = ? AND user_id = ?`),
		groupID, userID).Scan(&m.ID, &m.UserID, &m.GroupID, &m.IsLeader)
	return m, translate("get membership", err)
}

func (s *SQLStore) ListMembers(ctx context.Context, groupID int64) ([]domain.Member, error) {
	const op = "list members"
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(
		`SELECT m.id, m.user_id, m.group_id, m.is_leader, u.username, u.email
		 FROM group_members m JOIN users u ON u.id = m.user_id
		 WHERE m.group_id = ? ORDER BY m.id`), groupID)
	if err != nil {
		return nil, translate(op, err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.UserID, &m.GroupID, &m.IsLeader, &m.Username, &m.Email); err != nil {
			return nil, translate(op, err)
		}
		out = append(out, m)
	}
	return out, translate(op, rows.Err())
}

func (s *SQLStore) ListMemberships(ctx context.Context, userID int64) ([]domain.Membership, error) {
	const op = "list memberships"
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(
		`SELECT id, user_id, group_id, is_leader FROM group_members WHERE user_id = ? ORDER BY id`), userID)
	if err != nil {
		return nil, translate(op, err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Membership
	for rows.Next() {
		var m domain.Membership
		if err := rows.Scan(&m.ID, &m.UserID, &m.GroupID, &m.IsLeader); err != nil {
			return nil, translate(op, err)
		}
		out = append(out, m)
	}
	return out, translate(op, rows.Err())
}

func (s *SQLStore) RemoveMember(ctx context.Context, groupID, userID int64) error {
	return s.execOne(ctx, "remove member", `DELETE FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, userID)
}

// -----------------------------------------------------------------------------
// Birthdays
// -----------------------------------------------------------------------------

const birthdayColumns = `id, name, birth_date, year_known, notes, group_id, created_at, created_by`

func scanBirthday(row rowScanner) (domain.Birthday, error) {
	var b domain.Birthday
	var birthDate, createdAt string
	if err := row.Scan(&b.ID, &b.Name, &birthDate, &b.YearKnown, &b.Notes, &b.GroupID, &createdAt, &b.CreatedBy); err != nil {
		return domain.Birthday{}, err
	}
	d, err := time.Parse(config.DateFormatStorage, birthDate)
	if err != nil {
		return domain.Birthday{}, err
	}
	t, err := parseTimestamp(createdAt)
	if err != nil {
		return domain.Birthday{}, err
	}
	b.BirthDate = d
	b.CreatedAt = t
	return b, nil
}

func (s *SQLStore) queryBirthdays(ctx context.Context, op, query string, args ...any) ([]domain.Birthday, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, translate(op, err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Birthday
	for rows.Next() {
		b, err := scanBirthday(rows)
		if err != nil {
			return nil, translate(op, err)
		}
		out = append(out, b)
	}
	return out, translate(op, rows.Err())
}

const insertBirthday = `INSERT INTO birthdays (name, birth_date, year_known, notes, group_id, created_at, created_by)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

func birthdayArgs(b domain.Birthday) []any {
	return []any{b.Name, b.BirthDate.Format(config.DateFormatStorage), b.YearKnown, b.Notes,
		b.GroupID, formatTimestamp(b.CreatedAt), b.CreatedBy}
}

func (s *SQLStore) CreateBirthday(ctx context.Context, b domain.Birthday) (domain.Birthday, error) {
	id, err := s.insert(ctx, "create birthday", insertBirthday, birthdayArgs(b)...)
	if err != nil {
		return domain.Birthday{}, err
	}
	b.ID = id
	return b, nil
}

func (s *SQLStore) CreateBirthdays(ctx context.Context, list []domain.Birthday) ([]domain.Birthday, error) {
	const op = "create birthdays"
	out := make([]domain.Birthday, len(list))
	err := s.inTx(ctx, op, func(tx *sql.Tx) error {
		for i, b := range list {
			id, err := s.insertVia(ctx, tx, op, insertBirthday, birthdayArgs(b)...)
			if err != nil {
				return err
			}
			b.ID = id
			out[i] = b
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLStore) GetBirthday(ctx context.Context, id int64) (domain.Birthday, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(`SELECT `+birthdayColumns+` FROM birthdays WHERE id = ?`), id)
	b, err := scanBirthday(row)
	return b, translate("get birthday", err)
}

func (s *SQLStore) ListBirthdaysByGroups(ctx context.Context, groupIDs []int64) ([]domain.Birthday, error) {
	cond, args := s.dialect.inClause("group_id", groupIDs)
	return s.queryBirthdays(ctx, "list birthdays",
		`SELECT `+birthdayColumns+` FROM birthdays WHERE `+cond+` ORDER BY id`, args...)
}

func (s *SQLStore) SearchBirthdays(ctx context.Context, groupIDs []int64, query string) ([]domain.Birthday, error) {
	list, err := s.ListBirthdaysByGroups(ctx, groupIDs)
	if err != nil {
		return nil, err
	}
	return matchByName(list, query), nil
}

func (s *SQLStore) UpdateBirthday(ctx context.Context, b domain.Birthday) error {
	return s.execOne(ctx, "update birthday",
		`UPDATE birthdays SET name = ?, birth_date = ?, year_known = ?, notes = ?, group_id = ? WHERE id = ?`,
		b.Name, b.BirthDate.Format(config.DateFormatStorage), b.YearKnown, b.Notes, b.GroupID, b.ID)
}

func (s *SQLStore) DeleteBirthday(ctx context.Context, id int64) error {
	return s.execOne(ctx, "delete birthday", `DELETE FROM birthdays WHERE id = ?`, id)
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
