package models

// User is the credential record. PasswordHash and RefreshToken are
// excluded from every JSON response via the "-" tags, so any User value
// returned from a handler is already redacted.
type User struct {
	BaseModel
	Username      string  `json:"username" gorm:"type:varchar(100);uniqueIndex;not null"`
	Email         string  `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	FullName      string  `json:"fullName" gorm:"type:varchar(255);not null"`
	PasswordHash  string  `json:"-" gorm:"type:text;not null"`
	AvatarURL     string  `json:"avatarURL" gorm:"type:text"`
	CoverImageURL *string `json:"coverImageURL,omitempty" gorm:"type:text"`
	// At most one active session: overwritten on login/refresh, cleared
	// on logout. Empty means no session.
	RefreshToken string `json:"-" gorm:"type:text"`

	Designs []Design `json:"-" gorm:"foreignKey:UserID"`
	Codes   []Code   `json:"-" gorm:"foreignKey:UserID"`
}
