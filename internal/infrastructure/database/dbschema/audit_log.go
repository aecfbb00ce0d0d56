package dbschema

import (
	"time"

	"parley-server/internal/application/audit"
	"parley-server/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(AuditLog{})
}

// AuditLog represents the database schema for audit entries
type AuditLog struct {
	BaseModel
	RequestID    string    `gorm:"type:varchar(64);index"`
	UserID       string    `gorm:"type:varchar(64);index:idx_audit_user_created"`
	Action       string    `gorm:"type:varchar(64);not null;index"`
	ResourceType string    `gorm:"type:varchar(32)"`
	ResourceID   string    `gorm:"type:varchar(64)"`
	Method       string    `gorm:"type:varchar(10)"`
	Path         string    `gorm:"type:varchar(256)"`
	Status       int       `gorm:"not null"`
	Outcome      string    `gorm:"type:varchar(16);not null"`
	Detail       string    `gorm:"type:text"`
	OccurredAt   time.Time `gorm:"index:idx_audit_user_created;not null"`
}

// NewSchemaAuditLog creates a database schema from an audit entry
func NewSchemaAuditLog(e *audit.Entry) *AuditLog {
	return &AuditLog{
		RequestID:    e.RequestID,
		UserID:       e.UserID,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Method:       e.Method,
		Path:         e.Path,
		Status:       e.Status,
		Outcome:      e.Outcome,
		Detail:       e.Detail,
		OccurredAt:   e.CreatedAt,
	}
}
