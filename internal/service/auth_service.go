package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Freeeeeet/homeconnect/internal/model"
	"github.com/Freeeeeet/homeconnect/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthConfig struct {
	Secret   []byte
	TokenTTL time.Duration
	HashCost int
}

type AuthService struct {
	tx        Transactor
	users     UserStore
	providers ProviderStore
	locations LocationStore
	cfg       AuthConfig
	now       func() time.Time
	logger    *zap.Logger
}

func NewAuthService(
	tx Transactor,
	users UserStore,
	providers ProviderStore,
	locations LocationStore,
	cfg AuthConfig,
	logger *zap.Logger,
) *AuthService {
	if cfg.HashCost == 0 {
		cfg.HashCost = bcrypt.DefaultCost
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 72 * time.Hour
	}
	return &AuthService{
		tx:        tx,
		users:     users,
		providers: providers,
		locations: locations,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger,
	}
}

// Registration общие поля регистрации
type Registration struct {
	FullName string
	Username string
	Password string
	Phone    string
	Email    string
	Address  string
}

// ProviderRegistration поля профиля исполнителя
type ProviderRegistration struct {
	ServiceType  string
	Experience   int
	Description  string
	CertFilePath *string
	City         string
}

type tokenClaims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// RegisterCustomer регистрирует клиента
func (s *AuthService) RegisterCustomer(ctx context.Context, reg Registration) (*model.User, error) {
	user, err := s.newUser(reg, model.RoleCustomer)
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, registerErr(err)
	}

	s.logger.Info("Customer registered",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
	)

	return user, nil
}

// RegisterProvider регистрирует исполнителя: пользователь и профиль создаются одной транзакцией
func (s *AuthService) RegisterProvider(ctx context.Context, reg Registration, pr ProviderRegistration) (*model.User, *model.Provider, error) {
	user, err := s.newUser(reg, model.RoleProvider)
	if err != nil {
		return nil, nil, err
	}

	verr := &ValidationError{}
	if strings.TrimSpace(pr.ServiceType) == "" {
		verr.Add("service_type", "service type is required")
	}
	if pr.Experience < 0 {
		verr.Add("experience", "experience must be a non-negative number of years")
	}
	if err := verr.OrNil(); err != nil {
		return nil, nil, err
	}

	provider := &model.Provider{
		ServiceType:  strings.TrimSpace(pr.ServiceType),
		Experience:   pr.Experience,
		Description:  pr.Description,
		CertFilePath: pr.CertFilePath,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			return registerErr(err)
		}

		if city := strings.TrimSpace(pr.City); city != "" {
			loc, err := resolveLocation(ctx, s.locations, city)
			if err != nil {
				return err
			}
			provider.LocationID = &loc.ID
			provider.City = loc.City
		}

		provider.UserID = user.ID
		if err := s.providers.Create(ctx, provider); err != nil {
			return storeErr("create provider", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStore) {
			s.logger.Error("Provider registration failed", zap.String("username", user.Username), zap.Error(err))
		}
		return nil, nil, err
	}

	provider.FullName = user.FullName
	s.logger.Info("Provider registered",
		zap.Int64("user_id", user.ID),
		zap.Int64("provider_id", provider.ID),
		zap.String("service_type", provider.ServiceType),
	)

	return user, provider, nil
}

// Login проверяет пароль и роль и выдаёт подписанный токен
func (s *AuthService) Login(ctx context.Context, username, password string, role model.Role) (string, *model.User, error) {
	username = strings.TrimSpace(username)

	verr := &ValidationError{}
	if username == "" {
		verr.Add("username", "username is required")
	}
	if strings.TrimSpace(password) == "" {
		verr.Add("password", "password is required")
	}
	if err := verr.OrNil(); err != nil {
		return "", nil, err
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return "", nil, storeErr("get user", err)
	}
	if user == nil || user.Role != role {
		return "", nil, ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrUnauthorized
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	s.logger.Info("User logged in",
		zap.Int64("user_id", user.ID),
		zap.String("role", string(user.Role)),
	)

	return token, user, nil
}

// ParseToken проверяет токен и возвращает личность вызывающего
func (s *AuthService) ParseToken(token string) (model.Actor, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return model.Actor{}, ErrUnauthorized
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || !claims.Role.Valid() {
		return model.Actor{}, ErrUnauthorized
	}

	return model.Actor{UserID: userID, Role: claims.Role}, nil
}

func (s *AuthService) issueToken(user *model.User) (string, error) {
	now := s.now()
	claims := tokenClaims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
}

func (s *AuthService) newUser(reg Registration, role model.Role) (*model.User, error) {
	reg.FullName = strings.TrimSpace(reg.FullName)
	reg.Username = strings.TrimSpace(reg.Username)

	verr := &ValidationError{}
	if reg.FullName == "" {
		verr.Add("full_name", "full name is required")
	}
	if reg.Username == "" {
		verr.Add("username", "username is required")
	}
	// Пароль хешируется как есть, пробелы значимы
	if strings.TrimSpace(reg.Password) == "" {
		verr.Add("password", "password is required")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cfg.HashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, NewValidationError("password", "password is too long")
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	return &model.User{
		FullName:     reg.FullName,
		Username:     reg.Username,
		PasswordHash: string(hash),
		Role:         role,
		Phone:        strings.TrimSpace(reg.Phone),
		Email:        strings.TrimSpace(reg.Email),
		Address:      strings.TrimSpace(reg.Address),
	}, nil
}

func registerErr(err error) error {
	if errors.Is(err, repository.ErrUsernameTaken) {
		return NewValidationError("username", "username already exists")
	}
	return storeErr("create user", err)
}

// resolveLocation находит город или заводит новый
func resolveLocation(ctx context.Context, locations LocationStore, city string) (*model.Location, error) {
	loc, err := locations.GetByCity(ctx, city)
	if err != nil {
		return nil, storeErr("get location", err)
	}
	if loc != nil {
		return loc, nil
	}
	loc, err = locations.Ensure(ctx, city)
	if err != nil {
		return nil, storeErr("create location", err)
	}
	return loc, nil
}
