package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 8

var (
	// ErrInvalidEmail indicates a missing or malformed email address.
	ErrInvalidEmail = errors.New("accounts: invalid email")
	// ErrWeakPassword indicates a password shorter than the minimum length.
	ErrWeakPassword = errors.New("accounts: password too short")
	// ErrDuplicateEmail indicates the email is already registered.
	ErrDuplicateEmail = errors.New("accounts: email already registered")
	// ErrInvalidCredentials indicates an unknown email or a wrong password.
	// Both cases share one error so callers cannot probe for registered emails.
	ErrInvalidCredentials = errors.New("accounts: invalid credentials")
	// ErrNotFound indicates the addressed account does not exist.
	ErrNotFound = errors.New("accounts: account not found")
)

// ServiceConfig describes the dependencies of the account service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service manages registration, credential checks and account moderation.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
}

// NewService validates the configuration and constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("accounts: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, now: clock, logger: logger}, nil
}

// Register validates the credentials, hashes the password and persists a new
// account. The very first registered account receives the admin role; every
// later one is a regular user.
func (s *Service) Register(ctx context.Context, rawEmail, password string) (Account, error) {
	email := normalizeEmail(rawEmail)
	if email == "" || !strings.Contains(email, "@") {
		return Account{}, fmt.Errorf("%w: %q", ErrInvalidEmail, rawEmail)
	}
	if len(password) < minPasswordLength {
		return Account{}, fmt.Errorf("%w: minimum %d characters", ErrWeakPassword, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, fmt.Errorf("accounts: hash password: %w", err)
	}

	accountID, err := uuid.NewV7()
	if err != nil {
		return Account{}, fmt.Errorf("accounts: generate id: %w", err)
	}

	var account Account
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&Account{}).Where("email = ?", email).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateEmail, email)
		}

		var total int64
		if err := tx.Model(&Account{}).Count(&total).Error; err != nil {
			return err
		}
		role := RoleUser
		if total == 0 {
			role = RoleAdmin
		}

		account = Account{
			AccountID:        accountID.String(),
			Email:            email,
			PasswordHash:     string(hash),
			Role:             role,
			CreatedAtSeconds: s.now().UTC().Unix(),
		}
		return tx.Create(&account).Error
	})
	if txErr != nil {
		if !errors.Is(txErr, ErrDuplicateEmail) {
			s.logger.Error("account registration failed", zap.Error(txErr))
		}
		return Account{}, txErr
	}

	s.logger.Info("account registered",
		zap.String("account_id", account.AccountID),
		zap.String("role", string(account.Role)))
	return account, nil
}

// Authenticate verifies the email/password pair and returns the account.
func (s *Service) Authenticate(ctx context.Context, rawEmail, password string) (Account, error) {
	email := normalizeEmail(rawEmail)

	var account Account
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		s.logger.Error("account lookup failed", zap.Error(err))
		return Account{}, fmt.Errorf("accounts: lookup: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return Account{}, ErrInvalidCredentials
	}
	return account, nil
}

// Get returns the account with the given identifier.
func (s *Service) Get(ctx context.Context, accountID string) (Account, error) {
	var account Account
	err := s.db.WithContext(ctx).Where("account_id = ?", accountID).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("accounts: lookup: %w", err)
	}
	return account, nil
}

// List returns every registered account, oldest first. Administrative scope.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	var all []Account
	if err := s.db.WithContext(ctx).Order("created_at_s ASC").Find(&all).Error; err != nil {
		s.logger.Error("account listing failed", zap.Error(err))
		return nil, fmt.Errorf("accounts: list: %w", err)
	}
	return all, nil
}

// Delete removes an account. The caller is responsible for purging the
// account's records; the two stores are intentionally decoupled.
func (s *Service) Delete(ctx context.Context, accountID string) error {
	result := s.db.WithContext(ctx).Where("account_id = ?", accountID).Delete(&Account{})
	if result.Error != nil {
		s.logger.Error("account deletion failed", zap.Error(result.Error))
		return fmt.Errorf("accounts: delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
