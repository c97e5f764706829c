package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"heartlink-backend/internal/apperr"
	"heartlink-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const jwtExpDays = 365

// UserService issues and validates credentials and manages the minimal
// identity the core needs. Profile editing and discovery live elsewhere.
type UserService struct {
	users     UserStore
	jwtSecret string
}

// NewUserService creates a new user service
func NewUserService(users UserStore, jwtSecret string) *UserService {
	return &UserService{users: users, jwtSecret: jwtSecret}
}

// Register creates a user and returns it with a signed token.
func (s *UserService) Register(ctx context.Context, nickname, profileImage string) (*models.User, string, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil, "", apperr.New(apperr.KindInvalidArgument, "nickname is required")
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Nickname:     nickname,
		ProfileImage: profileImage,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", apperr.Internal("failed to create user", err)
	}

	token, err := s.GenerateJWT(user.ID)
	if err != nil {
		return nil, "", apperr.Internal("failed to sign token", err)
	}
	return user, token, nil
}

// UpdatePushToken stores the device token used for offline notification.
func (s *UserService) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	if err := s.users.UpdatePushToken(ctx, userID, pushToken); err != nil {
		return apperr.Internal("failed to update push token", err)
	}
	return nil
}

// GenerateJWT generates a JWT token for a user
func (s *UserService) GenerateJWT(userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().AddDate(0, 0, jwtExpDays).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the principal id.
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return "", apperr.Wrap(apperr.KindUnauthenticated, "invalid token", err)
	}
	if !token.Valid {
		return "", apperr.New(apperr.KindUnauthenticated, "invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", apperr.New(apperr.KindUnauthenticated, "invalid token claims")
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", apperr.New(apperr.KindUnauthenticated, "user_id not found in token")
	}
	return userID, nil
}
