package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/homeconnect/internal/model"
	"go.uber.org/zap"
)

// MatchingService отвечает на поисковые запросы и ничего не изменяет
type MatchingService struct {
	providers ProviderStore
	slots     SlotStore
	locations LocationStore
	reviews   ReviewStore
	policy    model.AvailabilityPolicy
	location  *time.Location
	retry     ReadRetry
	logger    *zap.Logger
}

func NewMatchingService(
	providers ProviderStore,
	slots SlotStore,
	locations LocationStore,
	reviews ReviewStore,
	policy model.AvailabilityPolicy,
	location *time.Location,
	retry ReadRetry,
	logger *zap.Logger,
) *MatchingService {
	if !policy.Valid() {
		policy = model.PolicyNonCancelled
	}
	if location == nil {
		location = time.UTC
	}
	return &MatchingService{
		providers: providers,
		slots:     slots,
		locations: locations,
		reviews:   reviews,
		policy:    policy,
		location:  location,
		retry:     retry,
		logger:    logger,
	}
}

// Policy возвращает действующую политику занятости
func (s *MatchingService) Policy() model.AvailabilityPolicy {
	return s.policy
}

// FindAvailableProviders возвращает исполнителей типа serviceType без
// блокирующей брони ровно на момент at
func (s *MatchingService) FindAvailableProviders(ctx context.Context, serviceType string, at time.Time) ([]*model.ProviderSummary, error) {
	serviceType = strings.TrimSpace(serviceType)

	verr := &ValidationError{}
	if serviceType == "" {
		verr.Add("serviceType", "service type is required")
	}
	if at.IsZero() {
		verr.Add("datetime", "datetime is required")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	blocking := s.policy.BlockingStatuses()
	providers, err := readWithRetry(ctx, s.retry, func(ctx context.Context) ([]*model.ProviderSummary, error) {
		return s.providers.ListAvailableAt(ctx, serviceType, at, blocking)
	})
	if err != nil {
		s.logger.Error("Failed to find available providers",
			zap.String("service_type", serviceType),
			zap.Time("at", at),
			zap.Error(err))
		return nil, storeErr("find available providers", err)
	}

	return providers, nil
}

// FindOpenSlots возвращает свободные слоты за календарный день date,
// при непустом city только исполнителей этого города
func (s *MatchingService) FindOpenSlots(ctx context.Context, serviceType string, date time.Time, city string) ([]*model.SlotWithProvider, error) {
	serviceType = strings.TrimSpace(serviceType)
	city = strings.TrimSpace(city)

	verr := &ValidationError{}
	if serviceType == "" {
		verr.Add("serviceType", "service type is required")
	}
	if date.IsZero() {
		verr.Add("date", "date is required")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	from, to := s.dayBounds(date)
	filter := model.SlotFilter{
		ServiceType: serviceType,
		From:        from,
		To:          to,
	}

	if city != "" {
		loc, err := s.locations.GetByCity(ctx, city)
		if err != nil {
			return nil, storeErr("get location", err)
		}
		if loc == nil {
			return nil, NewValidationError("location", "invalid location")
		}
		filter.LocationID = &loc.ID
	}

	slots, err := readWithRetry(ctx, s.retry, func(ctx context.Context) ([]*model.SlotWithProvider, error) {
		return s.slots.ListOpen(ctx, filter)
	})
	if err != nil {
		s.logger.Error("Failed to find open slots",
			zap.String("service_type", serviceType),
			zap.Time("from", from),
			zap.Error(err))
		return nil, storeErr("find open slots", err)
	}

	return slots, nil
}

// GetProviderDetail возвращает профиль исполнителя вместе с отзывами
func (s *MatchingService) GetProviderDetail(ctx context.Context, providerID int64) (*model.ProviderDetail, error) {
	provider, err := readWithRetry(ctx, s.retry, func(ctx context.Context) (*model.Provider, error) {
		return s.providers.GetByID(ctx, providerID)
	})
	if err != nil {
		return nil, storeErr("get provider", err)
	}
	if provider == nil {
		return nil, fmt.Errorf("provider %w", ErrNotFound)
	}

	reviews, err := readWithRetry(ctx, s.retry, func(ctx context.Context) ([]*model.Review, error) {
		return s.reviews.ListByProvider(ctx, providerID)
	})
	if err != nil {
		return nil, storeErr("list reviews", err)
	}
	if reviews == nil {
		reviews = []*model.Review{}
	}

	return &model.ProviderDetail{Provider: provider, Reviews: reviews}, nil
}

// dayBounds возвращает полуоткрытый интервал календарного дня date в часовом поясе сервиса
func (s *MatchingService) dayBounds(date time.Time) (time.Time, time.Time) {
	y, m, d := date.In(s.location).Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, s.location)
	return from, from.AddDate(0, 0, 1)
}
