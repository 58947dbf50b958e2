package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/civicpulse/incident_reporting_system/internal/config"
	"github.com/civicpulse/incident_reporting_system/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	digitPattern = regexp.MustCompile(`^[0-9]+$`)
)

// UserRepository определяет контракт для работы с хранилищем пользователей
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// RegisterInput - данные формы регистрации
type RegisterInput struct {
	Name            string
	Username        string
	Email           string
	Phone           string
	Password        string
	ConfirmPassword string
}

// RegistrationIssues - фиксированный набор нарушений правил регистрации.
// Структура с типизированными флагами вместо словаря строковых ключей.
type RegistrationIssues struct {
	UsernameTaken     bool `json:"username_taken,omitempty"`
	EmailTaken        bool `json:"email_taken,omitempty"`
	EmailInvalid      bool `json:"email_invalid,omitempty"`
	PhoneInvalid      bool `json:"phone_invalid,omitempty"`
	PasswordMismatch  bool `json:"password_mismatch,omitempty"`
	PasswordTooShort  bool `json:"password_too_short,omitempty"`
	PasswordNoUpper   bool `json:"password_no_upper,omitempty"`
	PasswordNoLower   bool `json:"password_no_lower,omitempty"`
	PasswordNoDigit   bool `json:"password_no_digit,omitempty"`
	PasswordNoSpecial bool `json:"password_no_special,omitempty"`
}

// HasAny сообщает, есть ли хотя бы одно нарушение
func (i RegistrationIssues) HasAny() bool {
	return i != RegistrationIssues{}
}

// SessionClaims - полезная нагрузка сессионного токена
type SessionClaims struct {
	jwt.RegisteredClaims
	Admin bool `json:"admin,omitempty"`
}

// UserService определяет контракт управления учетными записями
type UserService interface {
	Register(ctx context.Context, input RegisterInput) (RegistrationIssues, error)
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	IssueSession(user *models.User) (string, error)
}

type userService struct {
	repo   UserRepository
	logger *logrus.Logger
	cfg    *config.Config
}

func NewUserService(repo UserRepository, logger *logrus.Logger, cfg *config.Config) UserService {
	return &userService{
		repo:   repo,
		logger: logger,
		cfg:    cfg,
	}
}

// Register проверяет данные формы и создает пользователя.
// Нарушения правил возвращаются значением, ошибкой считается только сбой хранилища.
func (s *userService) Register(ctx context.Context, input RegisterInput) (RegistrationIssues, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "user",
		"method":   "Register",
		"username": input.Username,
	})

	issues := s.validateRegistration(ctx, input)
	if issues.HasAny() {
		log.Info("Registration rejected by validation")
		return issues, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return RegistrationIssues{}, fmt.Errorf("service: could not hash password: %w", err)
	}

	user := &models.User{
		Username:     input.Username,
		Name:         input.Name,
		Email:        input.Email,
		Phone:        input.Phone,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		log.WithError(err).Error("Failed to create user in repository")
		return RegistrationIssues{}, fmt.Errorf("service: could not create user: %w", err)
	}

	log.Info("User registered successfully")
	return RegistrationIssues{}, nil
}

func (s *userService) validateRegistration(ctx context.Context, input RegisterInput) RegistrationIssues {
	var issues RegistrationIssues

	if _, err := s.repo.GetByUsername(ctx, input.Username); err == nil {
		issues.UsernameTaken = true
	}
	if !emailPattern.MatchString(input.Email) {
		issues.EmailInvalid = true
	} else if _, err := s.repo.GetByEmail(ctx, input.Email); err == nil {
		issues.EmailTaken = true
	}
	if !digitPattern.MatchString(input.Phone) || len(input.Phone) < 10 {
		issues.PhoneInvalid = true
	}
	if input.Password != input.ConfirmPassword {
		issues.PasswordMismatch = true
	}
	if len(input.Password) < 8 {
		issues.PasswordTooShort = true
	}
	if !strings.ContainsAny(input.Password, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		issues.PasswordNoUpper = true
	}
	if !strings.ContainsAny(input.Password, "abcdefghijklmnopqrstuvwxyz") {
		issues.PasswordNoLower = true
	}
	if !strings.ContainsAny(input.Password, "0123456789") {
		issues.PasswordNoDigit = true
	}
	if !strings.ContainsAny(input.Password, "@$!%*?&#") {
		issues.PasswordNoSpecial = true
	}
	return issues
}

// Authenticate проверяет имя пользователя и пароль
func (s *userService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("service: could not get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// IssueSession выпускает подписанный HS256 сессионный токен
func (s *userService) IssueSession(user *models.User) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.SessionTTL)),
		},
		Admin: user.IsAdmin,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.SessionSecret))
	if err != nil {
		return "", fmt.Errorf("service: could not sign session token: %w", err)
	}
	return signed, nil
}

// ParseSession разбирает и проверяет сессионный токен.
// Используется middleware-слоем, поэтому принимает секрет явно.
func ParseSession(token, secret string) (*SessionClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &SessionClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, errors.New("invalid session token")
	}
	return claims, nil
}
