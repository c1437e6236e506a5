package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

type UserStore struct {
	db *pgxpool.Pool
}

func NewUserStore(db *pgxpool.Pool) *UserStore {
	return &UserStore{db: db}
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.DealershipID, &u.IsActive, &u.CreatedAt)
	return u, err
}

const userCols = `id, email, password_hash, name, role, dealership_id, is_active, created_at`

func (s *UserStore) GetByID(ctx context.Context, id int64) (domain.User, error) {
	row := s.db.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, store.ErrNotFound
	}
	if err != nil {
		return domain.User{}, store.Internal("users.GetByID", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	row := s.db.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, store.ErrNotFound
	}
	if err != nil {
		return domain.User{}, store.Internal("users.GetByEmail", err)
	}
	return u, nil
}

func (s *UserStore) Create(ctx context.Context, u domain.User) (domain.User, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, name, role, dealership_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userCols,
		u.Email, u.PasswordHash, u.Name, u.Role, u.DealershipID, u.IsActive)
	out, err := scanUser(row)
	if isUniqueViolation(err) {
		return domain.User{}, store.ErrAlreadyExists
	}
	if err != nil {
		return domain.User{}, store.Internal("users.Create", err)
	}
	return out, nil
}

func (s *UserStore) UpdateProfile(ctx context.Context, id int64, name string) error {
	tag, err := s.db.Exec(ctx, `UPDATE users SET name = $2 WHERE id = $1`, id, name)
	if err != nil {
		return store.Internal("users.UpdateProfile", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *UserStore) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	tag, err := s.db.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return store.Internal("users.SetPasswordHash", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *UserStore) List(ctx context.Context, dealershipID int64, page store.Page) (store.Paginated[domain.User], error) {
	page = page.Normalize()
	rows, err := s.db.Query(ctx, `
		SELECT `+userCols+` FROM users
		WHERE dealership_id = $1
		ORDER BY id
		LIMIT $2 OFFSET $3`, dealershipID, page.Limit, page.Offset)
	if err != nil {
		return store.Paginated[domain.User]{}, store.Internal("users.List", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return store.Paginated[domain.User]{}, store.Internal("users.List.scan", err)
		}
		out = append(out, u)
	}

	var total int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE dealership_id = $1`, dealershipID).Scan(&total); err != nil {
		return store.Paginated[domain.User]{}, store.Internal("users.List.count", err)
	}

	return store.Paginated[domain.User]{Items: out, Total: total}, nil
}
