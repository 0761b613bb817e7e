package custgorm

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/custodian-sh/custodian/core/identity"
)

// UserRepository implements identity.Store using GORM.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Get(ctx context.Context, id string) (*identity.User, error) {
	var u gormUser
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, identity.ErrNotFound
		}
		return nil, err
	}
	return toCoreUser(&u), nil
}

func (r *UserRepository) List(ctx context.Context) ([]identity.User, error) {
	var rows []gormUser
	if err := r.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]identity.User, len(rows))
	for i := range rows {
		out[i] = *toCoreUser(&rows[i])
	}
	return out, nil
}

func (r *UserRepository) Save(ctx context.Context, user *identity.User) error {
	return r.db.WithContext(ctx).Save(fromCoreUser(user)).Error
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&gormUser{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return identity.ErrNotFound
	}
	return nil
}

var _ identity.Store = (*UserRepository)(nil)
