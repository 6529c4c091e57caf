package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"content-market/internal/database"
	"content-market/internal/models"
	"content-market/pkg/logging"
)

// AccountService manages users and the creator approval lifecycle.
type AccountService struct {
	store *database.Store
}

func NewAccountService(store *database.Store) *AccountService {
	return &AccountService{store: store}
}

// EnsureUser returns the user for externalID, creating a plain user on
// first contact. A soft-deleted user is restored.
func (s *AccountService) EnsureUser(ctx context.Context, externalID int64, username, languageCode string) (*models.User, error) {
	if externalID == 0 {
		return nil, invariant("user without external id")
	}
	user, created, err := s.store.EnsureUser(ctx, &models.User{
		ExternalID:   externalID,
		Username:     strings.TrimPrefix(username, "@"),
		LanguageCode: languageCode,
		Role:         models.RolePlain,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure user %d: %w", externalID, err)
	}
	if created {
		logging.Infof("User %d registered", externalID)
	}
	return user, nil
}

// PromoteRole changes the role of a user. Promoting to creator requires an
// existing creator profile.
func (s *AccountService) PromoteRole(ctx context.Context, userID uint, role models.UserRole) error {
	var creatorID *uint
	switch role {
	case models.RolePlain, models.RoleOperator:
	case models.RoleCreator:
		creator, err := s.store.GetCreatorByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return reasonError(ErrNotFound, ReasonCreatorNotFound)
			}
			return fmt.Errorf("load creator of user %d: %w", userID, err)
		}
		creatorID = &creator.ID
	default:
		return invariant("unknown role %q", role)
	}

	if err := s.store.UpdateUserRole(ctx, userID, role, creatorID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return reasonError(ErrNotFound, ReasonUserNotFound)
		}
		return fmt.Errorf("update role of user %d: %w", userID, err)
	}
	return nil
}

// CreatorProfile is a creator registration request. The subscription offer
// is optional; price and days are set together.
type CreatorProfile struct {
	UserID            uint
	DisplayName       string
	SubscriptionPrice *int64
	SubscriptionDays  *int
}

// RegisterCreator creates a creator awaiting approval.
func (s *AccountService) RegisterCreator(ctx context.Context, profile CreatorProfile) (*models.Creator, error) {
	name := strings.TrimSpace(profile.DisplayName)
	if name == "" {
		return nil, invariant("creator without display name")
	}
	if (profile.SubscriptionPrice == nil) != (profile.SubscriptionDays == nil) {
		return nil, invariant("subscription price and days must be set together")
	}
	if profile.SubscriptionPrice != nil && (*profile.SubscriptionPrice < 0 || *profile.SubscriptionDays <= 0) {
		return nil, invariant("invalid subscription offer")
	}

	if _, err := s.store.GetUser(ctx, profile.UserID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, reasonError(ErrNotFound, ReasonUserNotFound)
		}
		return nil, fmt.Errorf("load user %d: %w", profile.UserID, err)
	}

	creator := &models.Creator{
		UserID:            profile.UserID,
		DisplayName:       name,
		Status:            models.CreatorPendingApproval,
		SubscriptionPrice: profile.SubscriptionPrice,
		SubscriptionDays:  profile.SubscriptionDays,
	}
	if err := s.store.CreateCreator(ctx, creator); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, reasonError(ErrInvalidState, ReasonCreatorAlreadyRegistered)
		}
		return nil, fmt.Errorf("create creator: %w", err)
	}

	logging.Infof("Creator %d registered for user %d", creator.ID, profile.UserID)
	return creator, nil
}

// TransitionCreator moves a creator along the approval state machine.
// Approval promotes the owning user to the creator role in the same
// transaction.
func (s *AccountService) TransitionCreator(ctx context.Context, creatorID uint, target models.CreatorStatus) (*models.Creator, error) {
	var creator *models.Creator
	err := s.store.Transaction(ctx, func(tx *database.Store) error {
		current, err := tx.GetCreator(ctx, creatorID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return reasonError(ErrNotFound, ReasonCreatorNotFound)
			}
			return err
		}
		if !current.CanTransitionTo(target) {
			return reasonError(ErrInvalidState, ReasonCreatorInvalidTransition)
		}

		ok, err := tx.TransitionCreatorStatus(ctx, creatorID, current.Status, target)
		if err != nil {
			return err
		}
		if !ok {
			return reasonError(ErrInvalidState, ReasonCreatorInvalidTransition)
		}

		if target == models.CreatorApproved {
			if err := tx.UpdateUserRole(ctx, current.UserID, models.RoleCreator, &current.ID); err != nil {
				return err
			}
		}

		current.Status = target
		creator = current
		return nil
	})
	if err != nil {
		var re *ReasonError
		if errors.As(err, &re) {
			return nil, err
		}
		return nil, fmt.Errorf("transition creator %d: %w", creatorID, err)
	}

	logging.Infof("Creator %d moved to %s", creatorID, target)
	return creator, nil
}
