package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prasatya/authflow/internal/domain/entity"
	"github.com/prasatya/authflow/internal/domain/repository"
)

var errNotFound = errors.New("not found")

type ProfileRepository struct {
	pool *pgxpool.Pool
}

func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*entity.Profile, error) {
	p := &entity.Profile{}

	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, address, city, postcode, country,
		       status, role, requires_password_change, password_changed_at,
		       created_at, updated_at
		FROM profiles
		WHERE id = $1
	`, id)

	if err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &p.Address, &p.City,
		&p.Postcode, &p.Country, &p.Status, &p.Role, &p.RequiresPasswordChange,
		&p.PasswordChangedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errNotFound
		}
		return nil, err
	}

	return p, nil
}

func (r *ProfileRepository) Update(ctx context.Context, p *entity.Profile) error {
	p.UpdatedAt = time.Now()

	res, err := r.pool.Exec(ctx, `
		UPDATE profiles
		SET name = $1, email = $2, phone = $3, address = $4, city = $5,
		    postcode = $6, country = $7, status = $8, role = $9,
		    requires_password_change = $10, password_changed_at = $11,
		    updated_at = $12
		WHERE id = $13
	`, p.Name, p.Email, p.Phone, p.Address, p.City, p.Postcode, p.Country,
		p.Status, p.Role, p.RequiresPasswordChange, p.PasswordChangedAt,
		p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}

	if res.RowsAffected() == 0 {
		return errNotFound
	}

	return nil
}

var _ repository.ProfileRepository = (*ProfileRepository)(nil)
