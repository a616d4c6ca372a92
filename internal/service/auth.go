package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/set-night/adbazaar/internal/config"
	"github.com/set-night/adbazaar/internal/domain"
	"github.com/set-night/adbazaar/internal/repository"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	store     repository.Store
	referrals *ReferralService
	notifier  Notifier
	cfg       *config.Config
	cost      int
	now       func() time.Time
}

func NewAuthService(store repository.Store, referrals *ReferralService, notifier Notifier, cfg *config.Config) *AuthService {
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &AuthService{store: store, referrals: referrals, notifier: notifier, cfg: cfg, cost: cost, now: time.Now}
}

type RegisterInput struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	ReferralCode string `json:"referralCode"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *domain.User `json:"user"`
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if len(in.Password) < config.MinPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, config.MinPasswordLen)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = email[:strings.Index(email, "@")]
	}
	if len([]rune(name)) > config.MaxNameLen {
		return nil, fmt.Errorf("%w: name is too long", domain.ErrInvalidInput)
	}

	// A bad referral code fails the signup instead of being silently dropped.
	refCode := normalizeCode(in.ReferralCode)
	if refCode != "" {
		if _, err := s.referrals.ValidateCode(ctx, refCode); err != nil {
			return nil, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	role := domain.RoleUser
	if s.cfg.IsAdmin(email) {
		role = domain.RoleAdmin
	}

	user := &domain.User{
		ID:            uuid.New(),
		Email:         email,
		PasswordHash:  string(hash),
		Name:          name,
		Role:          role,
		CreditBalance: decimal.Zero,
	}

	err = s.store.WithTx(ctx, func(st repository.Store) error {
		if _, err := st.Users().GetByEmail(ctx, email); err == nil {
			return domain.ErrEmailTaken
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("check email: %w", err)
		}

		code, err := s.referrals.uniqueCode(ctx, st)
		if err != nil {
			return err
		}
		user.ReferralCode = code

		if err := st.Users().Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return domain.ErrEmailTaken
			}
			return fmt.Errorf("create user: %w", err)
		}
		return st.Referrals().CreateCode(ctx, s.referrals.defaultCode(user.ID, code))
	})
	if err != nil {
		return nil, err
	}

	if refCode != "" {
		if _, err := s.referrals.ApplyCode(ctx, user.ID, refCode); err != nil {
			slog.Warn("apply referral code at signup", "error", err, "user_id", user.ID, "code", refCode)
		} else {
			user.ReferredByID = s.referredBy(ctx, user.ID)
		}
	}

	s.notifier.Signup(user, refCode)
	slog.Info("user registered", "user_id", user.ID, "referred", user.ReferredByID != nil)

	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrInvalidInput)
	}

	user, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	return s.issue(user)
}

func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// ParseToken validates a bearer token and returns the user id it was issued for.
func (s *AuthService) ParseToken(tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, domain.ErrUnauthorized
	}
	raw, _ := claims["user_id"].(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.ErrUnauthorized
	}
	return id, nil
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	now := s.now()
	expiresAt := now.Add(config.TokenTTL)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID.String(),
		"role":    string(user.Role),
		"iat":     now.Unix(),
		"exp":     expiresAt.Unix(),
	})
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &AuthResult{Token: signed, ExpiresAt: expiresAt, User: user}, nil
}

func (s *AuthService) referredBy(ctx context.Context, userID uuid.UUID) *uuid.UUID {
	u, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil
	}
	return u.ReferredByID
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email address", domain.ErrInvalidInput)
	}
	return email, nil
}
