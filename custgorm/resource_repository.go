package custgorm

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/custodian-sh/custodian/core/resource"
)

// ResourceRepository implements resource.Store using GORM.
type ResourceRepository struct {
	db *gorm.DB
}

func NewResourceRepository(db *gorm.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

func (r *ResourceRepository) Get(ctx context.Context, id string) (*resource.Resource, error) {
	var row gormResource
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, resource.ErrNotFound
		}
		return nil, err
	}
	return toCoreResource(&row), nil
}

func (r *ResourceRepository) GetByLegacyID(ctx context.Context, legacyID int64) (*resource.Resource, error) {
	var row gormResource
	if err := r.db.WithContext(ctx).First(&row, "legacy_id = ?", legacyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, resource.ErrNotFound
		}
		return nil, err
	}
	return toCoreResource(&row), nil
}

func (r *ResourceRepository) List(ctx context.Context) ([]resource.Resource, error) {
	var rows []gormResource
	if err := r.db.WithContext(ctx).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toCoreResources(rows), nil
}

func (r *ResourceRepository) ListByOwner(ctx context.Context, ownerID string) ([]resource.Resource, error) {
	var rows []gormResource
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toCoreResources(rows), nil
}

func (r *ResourceRepository) Save(ctx context.Context, res *resource.Resource) error {
	return r.db.WithContext(ctx).Save(fromCoreResource(res)).Error
}

func (r *ResourceRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&gormResource{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return resource.ErrNotFound
	}
	return nil
}

func toCoreResources(rows []gormResource) []resource.Resource {
	out := make([]resource.Resource, len(rows))
	for i := range rows {
		out[i] = *toCoreResource(&rows[i])
	}
	return out
}

var _ resource.Store = (*ResourceRepository)(nil)
