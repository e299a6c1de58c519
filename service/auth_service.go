package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"inphora/cache"
	"inphora/errs"
	"inphora/models"
)

// Claims is the JWT payload issued on login
type Claims struct {
	UserID int64       `json:"uid"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

type authService struct {
	uowFactory UnitOfWorkFactory
	store      cache.Store
	secret     []byte
	expiry     time.Duration
	now        func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(uowFactory UnitOfWorkFactory, store cache.Store, secret string, expiry time.Duration) AuthService {
	return &authService{
		uowFactory: uowFactory,
		store:      store,
		secret:     []byte(secret),
		expiry:     expiry,
		now:        time.Now,
	}
}

func revokedKey(tokenID string) string {
	return "revoked:" + tokenID
}

// Login verifies credentials and issues a signed token
func (s *authService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	// A missing user and a bad password produce the same answer
	if user == nil || !user.IsActive {
		return nil, errs.NewValidation("invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errs.NewValidation("invalid email or password")
	}

	now := s.now()
	if err := uow.UserRepository().RecordLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	expiresAt := now.Add(s.expiry)
	claims := Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	log.WithFields(log.Fields{
		"user_id": user.ID,
		"role":    user.Role,
	}).Info("User logged in")

	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	}, nil
}

// Logout revokes a token for the remainder of its lifetime
func (s *authService) Logout(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil // already expired
	}
	if err := s.store.Set(ctx, revokedKey(tokenID), "1", ttl); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// ParseToken validates a token's signature and expiry and checks it against
// the revocation list
func (s *authService) ParseToken(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, errs.NewValidation("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errs.NewValidation("invalid token")
	}

	if _, err := s.store.Get(ctx, revokedKey(claims.ID)); err == nil {
		return nil, errs.NewValidation("token has been revoked")
	} else if err != cache.ErrNotFound {
		return nil, fmt.Errorf("failed to check token revocation: %w", err)
	}

	return claims, nil
}

// CreateUser registers a back-office user
func (s *authService) CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	if req.Email == "" {
		return nil, errs.NewValidation("email is required")
	}
	if len(req.Password) < 8 {
		return nil, errs.NewValidation("password must be at least 8 characters")
	}
	if req.Role.Level() == 0 {
		return nil, errs.NewValidation("unknown role %q", req.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:     req.FullName,
		PasswordHash: string(hash),
		Role:         req.Role,
		IsActive:     true,
	}
	if err := uow.UserRepository().Create(ctx, user); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"user_id": user.ID,
		"role":    user.Role,
	}).Info("User created")

	return user, nil
}
