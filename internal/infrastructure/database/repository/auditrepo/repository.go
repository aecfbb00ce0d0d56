// Package auditrepo persists audit entries with gorm.
package auditrepo

import (
	"context"

	"gorm.io/gorm"

	"parley-server/internal/application/audit"
	"parley-server/internal/infrastructure/database/dbschema"
	"parley-server/internal/utils/platformerrors"
)

// Repository handles audit log persistence.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ audit.Repository = (*Repository)(nil)

func (r *Repository) Save(ctx context.Context, entry *audit.Entry) error {
	entity := dbschema.NewSchemaAuditLog(entry)
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabase,
			"failed to save audit entry",
			err,
			"f08c5d2a-6419-4be7-93a0-8d72c1e5b4f6",
		)
	}
	return nil
}
