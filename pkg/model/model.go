// Package model defines the database models, keeping mysql and redis connection instances.
package model

import (
	"time"
)

type Model struct {
	CreatedAt time.Time `json:"createdAt" gorm:"omitempty; not null;"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"omitempty; not null;"`
}
