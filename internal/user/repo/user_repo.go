package repo

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-ids-console/internal/user/entity"
)

// UserRepo provides data access for the users table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

const accountColumns = `id, role, full_name, username, email, password, created_at`

// Create inserts a new account and fills in its store-assigned id and
// creation time.
func (r *UserRepo) Create(ctx context.Context, a *entity.Account) (int64, error) {
	const q = `INSERT INTO users (role, full_name, username, email, password)
		VALUES (:role, :full_name, :username, :email, :password) RETURNING id, created_at`
	rows, err := r.db.NamedQueryContext(ctx, q, a)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&a.ID, &a.CreatedAt); err != nil {
			return 0, err
		}
		return a.ID, rows.Err()
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return 0, errors.New("no id returned")
}

// GetByUsername fetches by exact username or returns sql.ErrNoRows.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*entity.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM users WHERE username=$1`
	var a entity.Account
	if err := r.db.GetContext(ctx, &a, q, username); err != nil {
		return nil, err
	}
	return &a, nil
}

// ExistsByUsernameOrEmail reports whether either value is already in use.
func (r *UserRepo) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM users WHERE username=$1 OR email=$2)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, q, username, email); err != nil {
		return false, err
	}
	return ok, nil
}

// UsernameTaken reports whether username belongs to any account.
func (r *UserRepo) UsernameTaken(ctx context.Context, username string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM users WHERE username=$1)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, q, username); err != nil {
		return false, err
	}
	return ok, nil
}

// EmailTakenByOther reports whether email belongs to an account other than exceptID.
func (r *UserRepo) EmailTakenByOther(ctx context.Context, email string, exceptID int64) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM users WHERE email=$1 AND id<>$2)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, q, email, exceptID); err != nil {
		return false, err
	}
	return ok, nil
}

// List returns every account ordered by id.
func (r *UserRepo) List(ctx context.Context) ([]entity.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM users ORDER BY id`
	out := []entity.Account{}
	if err := r.db.SelectContext(ctx, &out, q); err != nil {
		return nil, err
	}
	return out, nil
}

// Update overwrites the mutable columns of the account identified by a.ID
// and returns the number of rows touched.
func (r *UserRepo) Update(ctx context.Context, a *entity.Account) (int64, error) {
	const q = `UPDATE users SET full_name=:full_name, email=:email, username=:username, password=:password WHERE id=:id`
	res, err := r.db.NamedExecContext(ctx, q, a)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteByIDs removes exactly the given ids.
func (r *UserRepo) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	q, args, err := sqlx.In(`DELETE FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// IsUniqueViolation reports whether err is a postgres unique_violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
