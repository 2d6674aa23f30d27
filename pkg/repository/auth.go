package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"virtualcard_back/models"
)

const userColumns = `id, first_name, mid_name, last_name, gender, date_of_birth, email, password_hash,
	role, verified, cardholder_id, created_at`

type AuthPostgres struct {
	db *sqlx.DB
}

func NewAuthPostgres(db *sqlx.DB) *AuthPostgres {
	return &AuthPostgres{db: db}
}

func (r *AuthPostgres) CreateUser(ctx context.Context, user models.User) (int64, error) {
	var id int64
	query := fmt.Sprintf(`
        INSERT INTO %s (first_name, mid_name, last_name, gender, date_of_birth, email, password_hash, role)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `, usersTable)
	err := r.db.QueryRowContext(ctx,
		query,
		user.FirstName,
		user.MidName,
		user.LastName,
		user.Gender,
		user.DateOfBirth,
		user.Email,
		user.PasswordHash,
		user.Role,
	).Scan(&id)
	if isUniqueViolation(err) {
		return 0, ErrDuplicateUser
	}
	return id, errors.Wrap(err, "insert user")
}

func (r *AuthPostgres) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE email = $1`, userColumns, usersTable)
	err := r.db.GetContext(ctx, &user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return user, ErrNotFound
	}
	return user, errors.Wrap(err, "get user by email")
}

func (r *AuthPostgres) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	var user models.User
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, userColumns, usersTable)
	err := r.db.GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return user, ErrNotFound
	}
	return user, errors.Wrap(err, "get user by id")
}

func (r *AuthPostgres) SetCardholderID(ctx context.Context, userID int64, cardholderID string) error {
	query := fmt.Sprintf(`UPDATE %s SET cardholder_id = $1 WHERE id = $2`, usersTable)
	_, err := r.db.ExecContext(ctx, query, cardholderID, userID)
	return errors.Wrap(err, "set cardholder id")
}

func (r *AuthPostgres) SetVerified(ctx context.Context, userID int64) error {
	query := fmt.Sprintf(`UPDATE %s SET verified = TRUE WHERE id = $1`, usersTable)
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return errors.Wrap(err, "set user verified")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AuthPostgres) ListUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at DESC`, userColumns, usersTable)
	err := r.db.SelectContext(ctx, &users, query)
	return users, errors.Wrap(err, "list users")
}
