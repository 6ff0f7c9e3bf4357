package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/homeconnect/internal/model"
	"go.uber.org/zap"
)

type ProviderService struct {
	tx        Transactor
	users     UserStore
	providers ProviderStore
	locations LocationStore
	reviews   ReviewStore
	retry     ReadRetry
	logger    *zap.Logger
}

func NewProviderService(
	tx Transactor,
	users UserStore,
	providers ProviderStore,
	locations LocationStore,
	reviews ReviewStore,
	retry ReadRetry,
	logger *zap.Logger,
) *ProviderService {
	return &ProviderService{
		tx:        tx,
		users:     users,
		providers: providers,
		locations: locations,
		reviews:   reviews,
		retry:     retry,
		logger:    logger,
	}
}

// GetProfile возвращает профиль исполнителя, от имени которого действует actor
func (s *ProviderService) GetProfile(ctx context.Context, actor model.Actor) (*model.Provider, error) {
	if !actor.IsProvider() {
		return nil, ErrForbidden
	}

	provider, err := readWithRetry(ctx, s.retry, func(ctx context.Context) (*model.Provider, error) {
		return s.providers.GetByUserID(ctx, actor.UserID)
	})
	if err != nil {
		return nil, storeErr("get provider", err)
	}
	if provider == nil {
		return nil, fmt.Errorf("provider profile %w", ErrNotFound)
	}

	return provider, nil
}

// UpdateProfile обновляет контакты и профиль исполнителя одной транзакцией
func (s *ProviderService) UpdateProfile(ctx context.Context, actor model.Actor, upd model.ProfileUpdate) (*model.Provider, error) {
	if !actor.IsProvider() {
		return nil, ErrForbidden
	}

	verr := &ValidationError{}
	if strings.TrimSpace(upd.FullName) == "" {
		verr.Add("full_name", "full name is required")
	}
	if strings.TrimSpace(upd.ServiceType) == "" {
		verr.Add("service_type", "service type is required")
	}
	if upd.Experience < 0 {
		verr.Add("experience", "experience must be a non-negative number of years")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	var updated *model.Provider
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		provider, err := s.providers.GetByUserID(ctx, actor.UserID)
		if err != nil {
			return storeErr("get provider", err)
		}
		if provider == nil {
			return fmt.Errorf("provider profile %w", ErrNotFound)
		}

		user := &model.User{
			ID:       actor.UserID,
			FullName: strings.TrimSpace(upd.FullName),
			Phone:    strings.TrimSpace(upd.Phone),
			Email:    strings.TrimSpace(upd.Email),
			Address:  strings.TrimSpace(upd.Address),
		}
		if err := s.users.UpdateContacts(ctx, user); err != nil {
			return storeErr("update user", err)
		}

		provider.ServiceType = strings.TrimSpace(upd.ServiceType)
		provider.Experience = upd.Experience
		provider.Description = upd.Description
		provider.CertFilePath = upd.CertFilePath
		provider.LocationID = nil
		if city := strings.TrimSpace(upd.City); city != "" {
			loc, err := resolveLocation(ctx, s.locations, city)
			if err != nil {
				return err
			}
			provider.LocationID = &loc.ID
		}

		if err := s.providers.Update(ctx, provider); err != nil {
			return storeErr("update provider", err)
		}

		updated, err = s.providers.GetByID(ctx, provider.ID)
		if err != nil {
			return storeErr("reload provider", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Provider profile updated",
		zap.Int64("provider_id", updated.ID),
		zap.String("service_type", updated.ServiceType),
	)

	return updated, nil
}

// ListReviews возвращает отзывы об исполнителе, новые первыми
func (s *ProviderService) ListReviews(ctx context.Context, actor model.Actor) ([]*model.Review, error) {
	provider, err := s.GetProfile(ctx, actor)
	if err != nil {
		return nil, err
	}

	reviews, err := readWithRetry(ctx, s.retry, func(ctx context.Context) ([]*model.Review, error) {
		return s.reviews.ListByProvider(ctx, provider.ID)
	})
	if err != nil {
		return nil, storeErr("list reviews", err)
	}

	return reviews, nil
}
