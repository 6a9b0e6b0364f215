package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/campus-connect/internal/apperror"
	"github.com/sakif/campus-connect/internal/identity"
	"github.com/sakif/campus-connect/internal/model"
	"github.com/sakif/campus-connect/internal/repository"
)

// ProfileService owns the profile rows that sit beside identity accounts.
//
// New accounts get a student profile through Provision, which the identity
// service calls as its account-created hook:
//
//	identity.Service (account created) → ProfileService.Provision → ProfileRepository
type ProfileService struct {
	profiles repository.ProfileRepository
	logger   *slog.Logger
}

var _ identity.AccountHook = (*ProfileService)(nil).Provision

func NewProfileService(profiles repository.ProfileRepository, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		logger:   logger,
	}
}

// Provision creates the profile for a new account. An existing profile, as
// when an OAuth sign-in links to a seeded account, is left as it is.
func (s *ProfileService) Provision(ctx context.Context, account *model.Account, displayName, avatarURL string) error {
	if account == nil {
		return fmt.Errorf("service: provisioning profile: account must not be nil")
	}

	_, err := s.profiles.GetProfile(ctx, account.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("service: loading profile %s: %w", account.ID, err)
	}

	profile := &model.Profile{
		UserID:      account.ID,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		Role:        model.RoleStudent,
	}
	if err := s.profiles.UpsertProfile(ctx, profile); err != nil {
		return fmt.Errorf("service: creating profile %s: %w", account.ID, err)
	}

	s.logger.InfoContext(ctx, "profile provisioned",
		slog.String("userID", account.ID),
		slog.String("displayName", displayName),
	)
	return nil
}

// Get returns apperror.ErrNotFound when the user has no profile.
func (s *ProfileService) Get(ctx context.Context, userID string) (*model.Profile, error) {
	if userID == "" {
		return nil, apperror.ValidationFailed("userId", "user ID is required")
	}
	return s.profiles.GetProfile(ctx, userID)
}

// SetRole changes the stored role of an existing profile.
func (s *ProfileService) SetRole(ctx context.Context, userID string, role model.Role) error {
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	profile.Role = model.ParseRole(string(role))
	if err := s.profiles.UpsertProfile(ctx, profile); err != nil {
		return fmt.Errorf("service: updating profile %s: %w", userID, err)
	}

	s.logger.InfoContext(ctx, "profile role changed",
		slog.String("userID", userID),
		slog.String("role", string(profile.Role)),
	)
	return nil
}
