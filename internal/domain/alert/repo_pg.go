package alert

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Alert Repository ===========

type alertRepoPG struct{ db queryable }

// NewRepoPG accepts a *pgxpool.Pool or a pgx.Tx.
func NewRepoPG(db queryable) Repository { return &alertRepoPG{db: db} }

const alertCols = `id, user_id, title, message, category, severity, status, is_read, created_at`

func (r *alertRepoPG) scanAlert(row pgx.Row) (*Alert, error) {
	var a Alert
	err := row.Scan(&a.ID, &a.UserID, &a.Title, &a.Message, &a.Category,
		&a.Severity, &a.Status, &a.IsRead, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &a, err
}

func (r *alertRepoPG) Create(ctx context.Context, a *Alert) error {
	a.ID = uuid.New()
	return r.db.QueryRow(ctx, `
		INSERT INTO alerts (id, user_id, title, message, category, severity, status, is_read)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at`,
		a.ID, a.UserID, a.Title, a.Message, a.Category, a.Severity, a.Status, a.IsRead,
	).Scan(&a.CreatedAt)
}

func (r *alertRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Alert, error) {
	return r.scanAlert(r.db.QueryRow(ctx, `SELECT `+alertCols+` FROM alerts WHERE id = $1`, id))
}

// Update writes title, message and category and refreshes a.IsRead from the
// row. Concurrent updates are last-write-wins.
func (r *alertRepoPG) Update(ctx context.Context, a *Alert) error {
	err := r.db.QueryRow(ctx, `
		UPDATE alerts SET title=$2, message=$3, category=$4
		WHERE id = $1
		RETURNING is_read`,
		a.ID, a.Title, a.Message, a.Category).Scan(&a.IsRead)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// MarkRead sets is_read. The flag is never cleared.
func (r *alertRepoPG) MarkRead(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE alerts SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *alertRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM alerts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func whereClause(f Filter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	idx := 1

	if f.UserIDs != nil {
		ids := make([]string, len(f.UserIDs))
		for i, id := range f.UserIDs {
			ids[i] = id.String()
		}
		conds = append(conds, fmt.Sprintf(`user_id = ANY($%d::uuid[])`, idx))
		args = append(args, ids)
		idx++
	}
	if f.UnreadOnly {
		conds = append(conds, `is_read = FALSE`)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return ` WHERE ` + strings.Join(conds, ` AND `), args
}

func (r *alertRepoPG) List(ctx context.Context, f Filter) ([]*Alert, error) {
	if f.UserIDs != nil && len(f.UserIDs) == 0 {
		return []*Alert{}, nil
	}
	where, args := whereClause(f)
	rows, err := r.db.Query(ctx, `SELECT `+alertCols+` FROM alerts`+where+` ORDER BY created_at DESC, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*Alert{}
	for rows.Next() {
		a, err := r.scanAlert(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *alertRepoPG) Count(ctx context.Context, f Filter) (int, error) {
	if f.UserIDs != nil && len(f.UserIDs) == 0 {
		return 0, nil
	}
	where, args := whereClause(f)
	var total int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM alerts`+where, args...).Scan(&total)
	return total, err
}

// =========== User Directory ===========

type userDirectoryPG struct{ db queryable }

func NewUserDirectoryPG(db queryable) UserDirectory { return &userDirectoryPG{db: db} }

const userCols = `id, full_name, role, doctor_id`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.FullName, &u.Role, &u.DoctorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &u, err
}

func (r *userDirectoryPG) FindUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

func (r *userDirectoryPG) FindUsersAssignedToDoctor(ctx context.Context, doctorID uuid.UUID) ([]*User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userCols+` FROM users WHERE doctor_id = $1 ORDER BY full_name`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
