package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Skotchmaster/game_store/internal/models"
	"github.com/Skotchmaster/game_store/internal/repo"
	"github.com/Skotchmaster/game_store/internal/transport"
	pkgdb "github.com/Skotchmaster/game_store/pkg/db"
	"github.com/Skotchmaster/game_store/pkg/events"
	"github.com/Skotchmaster/game_store/pkg/logging"
)

type UserService struct {
	Repo   *repo.GormRepo
	Events events.Publisher
}

func (s *UserService) ListUsers(ctx context.Context, offset, limit int) (int64, []models.User, error) {
	total, users, err := s.Repo.ListUsers(ctx, offset, limit)
	if err != nil {
		return 0, nil, fmt.Errorf("list users: %w", err)
	}
	return total, users, nil
}

func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.Repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return user, nil
}

// UpdateUser applies an admin edit. An admin cannot change their own role.
func (s *UserService) UpdateUser(ctx context.Context, actorID, id uint, req transport.AdminUpdateUserRequest) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "users.update", "actor_id", actorID, "user_id", id)

	patch, err := req.ToPatch()
	if err != nil {
		return nil, validation(err)
	}

	current, err := s.Repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "user")
	}
	if role, ok := patch["role"]; ok && actorID == id && role != string(current.Role) {
		return nil, fmt.Errorf("%w: admins cannot change their own role", ErrForbidden)
	}

	user, err := s.Repo.UpdateUser(ctx, id, patch)
	if err != nil {
		if pkgdb.IsDuplicate(err) {
			return nil, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		return nil, notFound(err, "user")
	}

	fields := make([]string, 0, len(patch))
	for k := range patch {
		fields = append(fields, k)
	}
	l.Info("user_updated", "fields", fields)
	publish(ctx, s.Events, events.TopicUsers, strconv.FormatUint(uint64(id), 10), events.New("user_updated", map[string]any{
		"user_id":    id,
		"by_user_id": actorID,
		"role":       user.Role,
	}))
	return user, nil
}

func (s *UserService) DeleteUser(ctx context.Context, actorID, id uint) error {
	l := logging.FromContext(ctx).With("svc", "users.delete", "actor_id", actorID, "user_id", id)

	if actorID == id {
		return fmt.Errorf("%w: admins cannot delete their own account here", ErrForbidden)
	}
	if err := s.Repo.DeleteUser(ctx, id); err != nil {
		if pkgdb.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: the user has orders", ErrConflict)
		}
		return notFound(err, "user")
	}

	l.Info("user_deleted")
	publish(ctx, s.Events, events.TopicUsers, strconv.FormatUint(uint64(id), 10), events.New("user_deleted", map[string]any{
		"user_id":    id,
		"by_user_id": actorID,
	}))
	return nil
}
