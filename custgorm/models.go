package custgorm

import (
	"time"

	"github.com/custodian-sh/custodian/core/audit"
	"github.com/custodian-sh/custodian/core/identity"
	"github.com/custodian-sh/custodian/core/resource"
)

type gormUser struct {
	ID        string `gorm:"primaryKey"`
	Role      string `gorm:"index"`
	Active    bool   `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (gormUser) TableName() string { return "users" }

func fromCoreUser(u *identity.User) *gormUser {
	return &gormUser{
		ID:        u.ID,
		Role:      string(u.Role),
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func toCoreUser(u *gormUser) *identity.User {
	return &identity.User{
		ID:        u.ID,
		Role:      identity.Role(u.Role),
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type gormResource struct {
	ID              string `gorm:"primaryKey"`
	Category        string `gorm:"index"`
	OwnerID         string `gorm:"index"`
	Name            string
	Payload         resource.JSON `gorm:"type:json"`
	VisibleToAdmin  bool
	VisibleToEditor bool
	VisibleToViewer bool
	LegacyID        *int64 `gorm:"uniqueIndex"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (gormResource) TableName() string { return "resources" }

func fromCoreResource(r *resource.Resource) *gormResource {
	return &gormResource{
		ID:              r.ID,
		Category:        string(r.Category),
		OwnerID:         r.OwnerID,
		Name:            r.Name,
		Payload:         r.Payload,
		VisibleToAdmin:  r.Visibility.Admin,
		VisibleToEditor: r.Visibility.Editor,
		VisibleToViewer: r.Visibility.Viewer,
		LegacyID:        r.LegacyID,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func toCoreResource(r *gormResource) *resource.Resource {
	return &resource.Resource{
		ID:       r.ID,
		Category: resource.Category(r.Category),
		OwnerID:  r.OwnerID,
		Name:     r.Name,
		Payload:  r.Payload,
		Visibility: resource.Visibility{
			Admin:  r.VisibleToAdmin,
			Editor: r.VisibleToEditor,
			Viewer: r.VisibleToViewer,
		},
		LegacyID:  r.LegacyID,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type gormAuditRecord struct {
	ID         string    `gorm:"primaryKey"`
	ActorID    string    `gorm:"index"`
	Action     string    `gorm:"index"`
	ResourceID string    `gorm:"index"`
	CreatedAt  time.Time `gorm:"index"`
}

func (gormAuditRecord) TableName() string { return "audit_records" }

func fromCoreAuditRecord(rec *audit.Record) *gormAuditRecord {
	return &gormAuditRecord{
		ID:         rec.ID,
		ActorID:    rec.ActorID,
		Action:     string(rec.Action),
		ResourceID: rec.ResourceID,
		CreatedAt:  rec.CreatedAt,
	}
}
