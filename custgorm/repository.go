// Package custgorm implements the relational accessors on GORM. One open
// database serves the user, resource, and audit repositories; the dialect is
// selected by name through the provider registry, so swapping sqlite for
// postgres is a configuration change.
package custgorm

import (
	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *gorm.DB {
	return r.db
}

func init() {
	Register("sqlite", sqlite.Open)
	Register("postgres", postgres.Open)
	Register("mysql", mysql.Open)
}

// AutoMigrate creates or updates every table the module persists to.
func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&gormUser{},
		&gormResource{},
		&gormAuditRecord{},
	)
}

// Users returns the identity.Store view of the repository.
func (r *Repository) Users() *UserRepository {
	return &UserRepository{db: r.db}
}

// Resources returns the resource.Store view of the repository.
func (r *Repository) Resources() *ResourceRepository {
	return &ResourceRepository{db: r.db}
}

// Audit returns the audit.Store view of the repository.
func (r *Repository) Audit() *AuditRepository {
	return &AuditRepository{db: r.db}
}
