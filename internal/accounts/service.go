package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/papyrus/internal/auth"
)

const minPasswordLength = 6

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingHasher     = errors.New("password hasher is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()

	// ErrInvalidInput indicates a missing email or an unacceptable password.
	ErrInvalidInput = errors.New("accounts: invalid input")
	// ErrEmailTaken indicates the normalized email is already registered.
	ErrEmailTaken = errors.New("accounts: email already registered")
	// ErrInvalidCredentials indicates the account is absent or the password does not verify.
	ErrInvalidCredentials = errors.New("accounts: invalid credentials")
)

const (
	opServiceNew   = "accounts.service.new"
	opRegister     = "accounts.register"
	opAuthenticate = "accounts.authenticate"
)

// ServiceError carries a stable machine-readable code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the stable error code.
func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// IDProvider supplies primary identifiers for new accounts.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies for account registration and login.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Hasher     *auth.PasswordHasher
	Logger     *zap.Logger
}

// Service manages registered accounts.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	hasher     *auth.PasswordHasher
	logger     *zap.Logger
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	if cfg.Hasher == nil {
		return nil, newServiceError(opServiceNew, "missing_hasher", errMissingHasher)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		hasher:     cfg.Hasher,
		logger:     logger,
	}, nil
}

// Register persists a new account and returns its identifier.
// The password is run through the salted one-way hasher before storage.
func (s *Service) Register(ctx context.Context, email, password string) (string, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" || password == "" {
		return "", fmt.Errorf("%w: email and password required", ErrInvalidInput)
	}
	if len(password) < minPasswordLength {
		return "", fmt.Errorf("%w: password shorter than %d characters", ErrInvalidInput, minPasswordLength)
	}

	var existing Account
	err := s.db.WithContext(ctx).Where("email = ?", normalized).Take(&existing).Error
	if err == nil {
		return "", ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logError(opRegister, "email_lookup_failed", err)
		return "", newServiceError(opRegister, "email_lookup_failed", err)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		s.logError(opRegister, "password_hash_failed", err)
		return "", newServiceError(opRegister, "password_hash_failed", err)
	}

	accountID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opRegister, "id_generation_failed", err)
		return "", newServiceError(opRegister, "id_generation_failed", err)
	}

	account := Account{
		ID:           accountID,
		Email:        normalized,
		PasswordHash: passwordHash,
		CreatedAt:    s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return "", ErrEmailTaken
		}
		s.logError(opRegister, "account_insert_failed", err)
		return "", newServiceError(opRegister, "account_insert_failed", err)
	}

	return account.ID, nil
}

// Authenticate verifies the credentials and returns the matching account.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Account, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" || password == "" {
		return Account{}, fmt.Errorf("%w: email and password required", ErrInvalidInput)
	}

	var account Account
	err := s.db.WithContext(ctx).Where("email = ?", normalized).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		s.logError(opAuthenticate, "email_lookup_failed", err)
		return Account{}, newServiceError(opAuthenticate, "email_lookup_failed", err)
	}

	if !s.hasher.Verify(account.PasswordHash, password) {
		return Account{}, ErrInvalidCredentials
	}

	return account, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("accounts service error", attrs...)
}
