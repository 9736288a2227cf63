package services

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/sketchcode/backend/internal/config"
	"github.com/sketchcode/backend/internal/models"
	"github.com/sketchcode/backend/internal/storage"
	"github.com/sketchcode/backend/pkg/logger"
	"github.com/sketchcode/backend/pkg/tokens"
	"github.com/sketchcode/backend/pkg/utils"
	"gorm.io/gorm"
)

var (
	ErrUsernameTaken          = errors.New("username already taken")
	ErrEmailTaken             = errors.New("email already registered")
	ErrUserNotFound           = errors.New("user not found")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrInvalidRefreshToken    = errors.New("invalid refresh token")
	ErrRefreshTokenMismatch   = errors.New("refresh token expired or already used")
	ErrAvatarUploadFailed     = errors.New("avatar upload failed")
	ErrCoverImageUploadFailed = errors.New("cover image upload failed")
)

// AuthService owns the credential store and the session-token
// lifecycle: registration, login, logout, refresh-token rotation and
// password change.
type AuthService struct {
	DB      *gorm.DB
	Tokens  *tokens.Issuer
	Storage storage.ObjectStore
	Upload  config.UploadConfig
}

func NewAuthService(db *gorm.DB, issuer *tokens.Issuer, store storage.ObjectStore, upload config.UploadConfig) *AuthService {
	return &AuthService{DB: db, Tokens: issuer, Storage: store, Upload: upload}
}

// ImageUpload is one multipart file to be forwarded to the blob store.
type ImageUpload struct {
	Reader      io.Reader
	Size        int64
	ContentType string
	ObjectName  string
}

type RegisterInput struct {
	Username   string
	Email      string
	Password   string
	FullName   string
	Avatar     *ImageUpload
	CoverImage *ImageUpload
}

// Register creates the user record. The avatar upload is mandatory;
// a failed cover image upload blocks registration only when the
// deployment is configured with COVER_IMAGE_REQUIRED.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))
	email := strings.ToLower(strings.TrimSpace(input.Email))

	var existing models.User
	if err := s.DB.WithContext(ctx).First(&existing, "username = ?", username).Error; err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).First(&existing, "email = ?", email).Error; err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	avatarURL, err := s.Storage.Upload(ctx, input.Avatar.ObjectName, input.Avatar.Reader, input.Avatar.Size, input.Avatar.ContentType)
	if err != nil {
		return nil, ErrAvatarUploadFailed
	}

	var coverImageURL *string
	if input.CoverImage != nil {
		url, err := s.Storage.Upload(ctx, input.CoverImage.ObjectName, input.CoverImage.Reader, input.CoverImage.Size, input.CoverImage.ContentType)
		if err != nil {
			if s.Upload.CoverImageRequired {
				return nil, ErrCoverImageUploadFailed
			}
			logger.Warn("cover_image_upload_skipped", map[string]interface{}{
				"username": username,
				"error":    err.Error(),
			})
		} else {
			coverImageURL = &url
		}
	}

	passwordHash, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:      username,
		Email:         email,
		FullName:      strings.TrimSpace(input.FullName),
		PasswordHash:  passwordHash,
		AvatarURL:     avatarURL,
		CoverImageURL: coverImageURL,
	}

	if err := s.DB.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}

	logger.InfoWithUser(user.ID.String(), "user_registered", map[string]interface{}{
		"username": user.Username,
		"email":    user.Email,
	})

	return user, nil
}

// Login verifies the credentials and opens the user's single session:
// a fresh access/refresh pair is issued and the refresh token is
// persisted on the user row, displacing any previous session.
func (s *AuthService) Login(ctx context.Context, usernameOrEmail, password string) (*models.User, *tokens.Pair, error) {
	identifier := strings.ToLower(strings.TrimSpace(usernameOrEmail))

	var user models.User
	err := s.DB.WithContext(ctx).First(&user, "username = ? OR email = ?", identifier, identifier).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, err
	}

	if !utils.CheckPassword(password, user.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issueSession(ctx, &user)
	if err != nil {
		return nil, nil, err
	}

	logger.InfoWithUser(user.ID.String(), "user_login", map[string]interface{}{
		"username": user.Username,
	})

	return &user, pair, nil
}

// Logout clears the stored refresh token. Calling it without an active
// session is a no-op.
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	err := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Update("refresh_token", "").Error
	if err != nil {
		return err
	}

	logger.InfoWithUser(userID.String(), "user_logout", nil)
	return nil
}

// Refresh rotates the session: the incoming token must verify against
// the refresh secret and exactly match the token currently stored on
// the user row. A rotated-out token is rejected even if its signature
// and expiry are still valid.
func (s *AuthService) Refresh(ctx context.Context, incomingToken string) (*models.User, *tokens.Pair, error) {
	claims, err := s.Tokens.ValidateRefreshToken(incomingToken)
	if err != nil {
		return nil, nil, ErrInvalidRefreshToken
	}

	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", claims.UserID).Error; err != nil {
		return nil, nil, ErrInvalidRefreshToken
	}

	if user.RefreshToken == "" || incomingToken != user.RefreshToken {
		logger.WarnWithUser(user.ID.String(), "refresh_token_replay_rejected", nil)
		return nil, nil, ErrRefreshTokenMismatch
	}

	pair, err := s.issueSession(ctx, &user)
	if err != nil {
		return nil, nil, err
	}

	logger.InfoWithUser(user.ID.String(), "refresh_token_rotated", nil)
	return &user, pair, nil
}

// ChangePassword re-hashes after verifying the old password. The
// active refresh token is left untouched; the session survives the
// password change.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if !utils.CheckPassword(oldPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Update("password_hash", hash).Error; err != nil {
		return err
	}

	logger.InfoWithUser(userID.String(), "password_changed", nil)
	return nil
}

// issueSession generates a pair and persists the new refresh token on
// the user row. The single-row UPDATE is the only consistency guarantee:
// two concurrent calls for the same user race last-writer-wins.
func (s *AuthService) issueSession(ctx context.Context, user *models.User) (*tokens.Pair, error) {
	pair, err := s.Tokens.GeneratePair(user)
	if err != nil {
		return nil, err
	}

	if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).
		Update("refresh_token", pair.RefreshToken).Error; err != nil {
		return nil, err
	}

	user.RefreshToken = pair.RefreshToken
	return pair, nil
}
