package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/content-aggregator/internal/models"
	"github.com/content-aggregator/internal/platform"
	"github.com/content-aggregator/internal/storage"
	"github.com/content-aggregator/pkg/logger"
)

// Service manages the set of tracked users. Adding a user validates the
// platform-native ID against the live platform and enriches the record with
// whatever profile data the platform exposes.
type Service struct {
	repo     storage.Repository
	registry *platform.Registry
	log      *logger.Logger
}

// NewService creates a tracked-user service
func NewService(repo storage.Repository, registry *platform.Registry, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		registry: registry,
		log:      log.WithComponent("users"),
	}
}

// AddUser registers a platform-native user ID for tracking. The ID is
// validated against the platform before anything is stored.
func (s *Service) AddUser(ctx context.Context, platformID uuid.UUID, platformUserID string, tags []string) (*models.TrackedUser, error) {
	plat, err := s.repo.GetPlatformByID(ctx, platformID)
	if err != nil {
		return nil, err
	}
	if !plat.IsActive() {
		return nil, fmt.Errorf("platform %s is not active", plat.Name)
	}
	adapter, err := s.registry.Resolve(plat.Type)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.FindTrackedUser(ctx, platformID, platformUserID); err == nil {
		return nil, storage.ErrDuplicateUser
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	cfg := map[string]interface{}(plat.Config)
	valid, err := adapter.ValidateUserID(ctx, platformUserID, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to validate user ID: %w", err)
	}
	if !valid {
		return nil, fmt.Errorf("user ID %q does not exist on %s", platformUserID, plat.Type)
	}

	info, err := adapter.GetUserInfo(ctx, platformUserID, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	user := &models.TrackedUser{
		PlatformID:  platformID,
		UserID:      platformUserID,
		Username:    info.Username,
		DisplayName: info.DisplayName,
		AvatarURL:   info.AvatarURL,
		Bio:         info.Bio,
		ProfileURL:  info.ProfileURL,
		Tags:        models.StringSlice(tags),
		IsActive:    true,
	}

	// Profile detail is best-effort: most platforms return nothing extra
	if detail, err := adapter.GetProfileDetail(ctx, platformUserID, cfg); err != nil {
		s.log.Warn().Err(err).
			Str("platform_user_id", platformUserID).
			Msg("Profile detail unavailable")
	} else if detail != nil {
		if v := detail["avatar_url"]; v != "" && user.AvatarURL == "" {
			user.AvatarURL = v
		}
		if v := detail["bio"]; v != "" && user.Bio == "" {
			user.Bio = v
		}
	}

	if err := s.repo.CreateTrackedUser(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("platform", plat.Type).
		Str("username", user.Username).
		Msg("User added for tracking")
	return user, nil
}

// Get returns a tracked user by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.TrackedUser, error) {
	return s.repo.GetTrackedUserByID(ctx, id)
}

// List returns tracked users matching the filter
func (s *Service) List(ctx context.Context, filter storage.UserFilter) ([]*models.TrackedUser, error) {
	return s.repo.ListTrackedUsers(ctx, filter)
}

// ListActive returns all users currently enabled for fetching
func (s *Service) ListActive(ctx context.Context) ([]*models.TrackedUser, error) {
	return s.repo.ListTrackedUsers(ctx, storage.UserFilter{ActiveOnly: true})
}

// SetActive enables or disables fetching for a user
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	user, err := s.repo.GetTrackedUserByID(ctx, id)
	if err != nil {
		return err
	}
	if user.IsActive == active {
		return nil
	}
	user.IsActive = active
	if err := s.repo.UpdateTrackedUser(ctx, user); err != nil {
		return err
	}
	s.log.Info().
		Str("username", user.Username).
		Bool("active", active).
		Msg("User activation changed")
	return nil
}

// Remove deletes a tracked user and stops tracking
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteTrackedUser(ctx, id)
}
