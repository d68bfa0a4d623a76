package repository

import (
	"context"

	"github.com/prasatya/authflow/internal/domain/entity"
)

// ProfileRepository defines the interface for profile persistence.
type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Profile, error)
	Update(ctx context.Context, p *entity.Profile) error
}
