package dbschema

import "time"

// BaseModel carries the surrogate key and timestamps shared by every table.
type BaseModel struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
