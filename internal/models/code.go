package models

import "github.com/google/uuid"

// Code pairs an uploaded design image with the source text generated for
// it. DesignURL is the public object-store URL the generation prompt was
// built from.
type Code struct {
	BaseModel
	DesignURL     string    `json:"designURL" gorm:"type:text;not null"`
	GeneratedCode string    `json:"generatedCode" gorm:"type:text;not null"`
	CodeType      string    `json:"codeType" gorm:"type:varchar(50);not null"`
	UserID        uuid.UUID `json:"userID" gorm:"type:uuid;not null;index"`

	User User `json:"user,omitempty" gorm:"foreignKey:UserID;references:ID"`
}
