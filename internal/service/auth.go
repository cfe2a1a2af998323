package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/game_store/internal/models"
	"github.com/Skotchmaster/game_store/internal/repo"
	"github.com/Skotchmaster/game_store/internal/transport"
	pkgdb "github.com/Skotchmaster/game_store/pkg/db"
	"github.com/Skotchmaster/game_store/pkg/events"
	pkghash "github.com/Skotchmaster/game_store/pkg/hash"
	"github.com/Skotchmaster/game_store/pkg/logging"
	"github.com/Skotchmaster/game_store/pkg/tokens"
)

const minPasswordLen = 6

type AuthService struct {
	Repo      *repo.GormRepo
	Events    events.Publisher
	JWTSecret []byte
	TokenTTL  time.Duration
}

type LoginResult struct {
	User        *models.User
	AccessToken string
	ExpiresAt   time.Time
}

// Register creates an account. Elevated roles may only be granted by an
// admin caller; callerRole is empty for anonymous requests.
func (s *AuthService) Register(ctx context.Context, req transport.RegisterRequest, callerRole string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: nombre is required", ErrValidation)
	}
	email, err := transport.NormalizeEmail(req.Email)
	if err != nil {
		return nil, validation(err)
	}
	if req.Password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrValidation)
	}
	if len(req.Password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	}

	role := models.RoleCustomer
	if req.Role != "" {
		role = models.Role(req.Role)
		if !role.Valid() {
			return nil, fmt.Errorf("%w: rol must be one of customer, employee, admin", ErrValidation)
		}
	}
	if role != models.RoleCustomer && callerRole != string(models.RoleAdmin) {
		return nil, fmt.Errorf("%w: only an admin can create %s accounts", ErrForbidden, role)
	}

	pwHash, err := pkghash.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{Name: name, Email: email, PasswordHash: pwHash, Role: role}
	if err := s.Repo.CreateUser(ctx, user); err != nil {
		if pkgdb.IsDuplicate(err) {
			return nil, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	l.Info("user_registered", "user_id", user.ID, "role", user.Role)
	publish(ctx, s.Events, events.TopicUsers, strconv.FormatUint(uint64(user.ID), 10), events.New("user_registered", map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    user.Role,
	}))
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, req transport.LoginRequest) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	user, err := s.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("login_failed", "reason", "unknown email")
			return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !pkghash.CheckPassword(user.PasswordHash, req.Password) {
		l.Warn("login_failed", "reason", "wrong password", "user_id", user.ID)
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}

	token, exp, err := tokens.NewAccessToken(user.ID, string(user.Role), s.JWTSecret, s.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	l.Info("login_success", "user_id", user.ID)
	return &LoginResult{User: user, AccessToken: token, ExpiresAt: exp}, nil
}

func (s *AuthService) Me(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.Repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return user, nil
}

// UpdateProfile changes the caller's own name. Email and role are managed by
// admins.
func (s *AuthService) UpdateProfile(ctx context.Context, userID uint, req transport.UpdateProfileRequest) (*models.User, error) {
	patch, err := req.ToPatch()
	if err != nil {
		return nil, validation(err)
	}
	user, err := s.Repo.UpdateUser(ctx, userID, patch)
	if err != nil {
		return nil, notFound(err, "user")
	}

	publish(ctx, s.Events, events.TopicUsers, strconv.FormatUint(uint64(user.ID), 10), events.New("user_updated", map[string]any{
		"user_id": user.ID,
		"fields":  []string{"nombre"},
	}))
	return user, nil
}

// DeleteAccount removes the caller's account after re-checking the password.
func (s *AuthService) DeleteAccount(ctx context.Context, userID uint, password string) error {
	l := logging.FromContext(ctx).With("svc", "auth.delete_account", "user_id", userID)

	if password == "" {
		return fmt.Errorf("%w: password is required", ErrValidation)
	}
	user, err := s.Repo.GetUserByID(ctx, userID)
	if err != nil {
		return notFound(err, "user")
	}
	if !pkghash.CheckPassword(user.PasswordHash, password) {
		l.Warn("delete_account_failed", "reason", "wrong password")
		return fmt.Errorf("%w: wrong password", ErrUnauthorized)
	}

	if err := s.Repo.DeleteUser(ctx, userID); err != nil {
		if pkgdb.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: the account has orders", ErrConflict)
		}
		return notFound(err, "user")
	}

	l.Info("account_deleted")
	publish(ctx, s.Events, events.TopicUsers, strconv.FormatUint(uint64(userID), 10), events.New("user_deleted", map[string]any{
		"user_id":    userID,
		"by_user_id": userID,
	}))
	return nil
}
