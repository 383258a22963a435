package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/vovakirdan/wirechat-rooms/internal/ratelimit"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

var (
	// ErrInvalidCredentials is returned when username/password don't match.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUserExists is returned when trying to register with existing username.
	ErrUserExists = errors.New("username already exists")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("username must be 3-32 characters of letters, digits, '_', '.' or '-'")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("password must be at least 6 characters")
	// ErrInvalidEmail is returned when an optional email is malformed.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrRateLimited is returned when a source registers too often.
	ErrRateLimited = errors.New("too many registration attempts")
)

const minPasswordLen = 6

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)

// Store is the persistence the service needs: accounts plus Home membership.
type Store interface {
	store.UserStore
	store.RoomStore
}

// RegisterInput carries a registration request. Source identifies the caller
// for rate limiting, typically the remote IP.
type RegisterInput struct {
	Username string
	Password string
	Email    string
	Source   string
}

// Grant is the outcome of a successful login or registration.
type Grant struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

// Service provides authentication operations.
type Service struct {
	store     Store
	jwtConfig *JWTConfig
	limiter   ratelimit.Limiter
}

// NewService creates a new authentication service. A nil limiter disables
// registration throttling.
func NewService(st Store, jwtConfig *JWTConfig, limiter ratelimit.Limiter) *Service {
	return &Service{
		store:     st,
		jwtConfig: jwtConfig,
		limiter:   limiter,
	}
}

// Register creates a user, adds it to Home and returns a token.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Grant, error) {
	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, "register:"+in.Source)
		if err != nil {
			return nil, fmt.Errorf("check rate limit: %w", err)
		}
		if !allowed {
			return nil, ErrRateLimited
		}
	}

	username := strings.TrimSpace(in.Username)
	if !usernamePattern.MatchString(username) {
		return nil, ErrInvalidUsername
	}
	if len(in.Password) < minPasswordLen {
		return nil, ErrInvalidPassword
	}
	email := strings.TrimSpace(in.Email)
	if email != "" {
		addr, err := mail.ParseAddress(email)
		if err != nil || addr.Address != email {
			return nil, ErrInvalidEmail
		}
	}

	hashedPassword, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &store.User{
		Username:     username,
		PasswordHash: hashedPassword,
		Email:        email,
		Status:       store.StatusOffline,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrUserExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := store.EnsureHomeRoom(ctx, s.store); err != nil {
		return nil, fmt.Errorf("ensure home room: %w", err)
	}
	if err := s.store.AddMember(ctx, store.HomeRoomID, username); err != nil {
		return nil, fmt.Errorf("join home room: %w", err)
	}

	return s.grant(username)
}

// Login validates credentials and returns a token.
func (s *Service) Login(ctx context.Context, username, password string) (*Grant, error) {
	username = strings.TrimSpace(username)

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("get user: %w", err)
		}
		_ = ComparePassword(dummyHash, password)
		return nil, ErrInvalidCredentials
	}

	if errPwd := ComparePassword(user.PasswordHash, password); errPwd != nil {
		return nil, ErrInvalidCredentials
	}

	return s.grant(user.Username)
}

// ValidateToken validates a token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}

func (s *Service) grant(username string) (*Grant, error) {
	token, err := GenerateToken(s.jwtConfig, username)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &Grant{Username: username, Token: token}, nil
}
