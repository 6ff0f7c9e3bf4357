package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/homeconnect/internal/model"
	"github.com/Freeeeeet/homeconnect/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	*base.Repository
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{Repository: base.NewRepository(pool)}
}

const userColumns = `id, full_name, username, password_hash, role, phone, email, address, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.FullName,
		&user.Username,
		&user.PasswordHash,
		&user.Role,
		&user.Phone,
		&user.Email,
		&user.Address,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create создаёт нового пользователя
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (full_name, username, password_hash, role, phone, email, address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.QueryRow(
		ctx, query,
		user.FullName,
		user.Username,
		user.PasswordHash,
		user.Role,
		user.Phone,
		user.Email,
		user.Address,
	).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		if name, ok := base.UniqueViolation(err); ok && name == constraintUsername {
			return ErrUsernameTaken
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

// GetByUsername ищет пользователя без учёта регистра
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(username) = LOWER($1)`

	user, err := scanUser(r.QueryRow(ctx, query, username))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by username: %w", err)
	}

	return user, nil
}

// GetByID получает пользователя по ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}

	return user, nil
}

// UpdateContacts обновляет контактные данные пользователя
func (r *UserRepository) UpdateContacts(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users
		SET full_name = $1, phone = $2, email = $3, address = $4
		WHERE id = $5
	`

	affected, err := r.ExecAffected(ctx, query, user.FullName, user.Phone, user.Email, user.Address, user.ID)
	if err != nil {
		return fmt.Errorf("update user contacts: %w", err)
	}

	if affected == 0 {
		return errors.New("user not found")
	}

	return nil
}
