package models

import "github.com/google/uuid"

type DesignStatus string

const (
	DesignStatusPending    DesignStatus = "pending"
	DesignStatusInProgress DesignStatus = "in-progress"
	DesignStatusCompleted  DesignStatus = "completed"
)

type Design struct {
	BaseModel
	Title         string       `json:"title" gorm:"type:varchar(255);not null"`
	Description   string       `json:"description" gorm:"type:text;not null"`
	ImageURL      string       `json:"imageURL" gorm:"type:text;not null"`
	Status        DesignStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	GeneratedCode *string      `json:"generatedCode,omitempty" gorm:"type:text"`
	UserID        uuid.UUID    `json:"userID" gorm:"type:uuid;not null;index"`

	User User `json:"user,omitempty" gorm:"foreignKey:UserID;references:ID"`
}
