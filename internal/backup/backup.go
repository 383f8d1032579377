// Package backup serializes the whole data set to a single versioned JSON
// document and restores it, for the administrative export/import and
// factory-reset surface.
package backup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cifraxlab/cifrax/internal/accounts"
	"github.com/cifraxlab/cifrax/internal/records"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentVersion is the schema version stamped on exported documents.
const DocumentVersion = 1

// Mode selects how Import treats existing rows.
type Mode string

const (
	// ModeReplace wipes every table before loading the document.
	ModeReplace Mode = "replace"
	// ModeMerge upserts document rows by primary key, keeping the rest.
	ModeMerge Mode = "merge"
)

var (
	// ErrUnsupportedVersion indicates a document produced by a newer schema.
	ErrUnsupportedVersion = errors.New("backup: unsupported document version")
	// ErrInvalidMode indicates an unknown import mode.
	ErrInvalidMode = errors.New("backup: invalid import mode")
	// ErrInvalidDocument indicates a document that fails record validation.
	ErrInvalidDocument = errors.New("backup: invalid document")
)

// ParseMode maps raw input onto an import Mode.
func ParseMode(rawInput string) (Mode, error) {
	switch Mode(rawInput) {
	case ModeReplace:
		return ModeReplace, nil
	case ModeMerge:
		return ModeMerge, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, rawInput)
	}
}

// Document is the serialized shape of the full data set.
type Document struct {
	Version           int                   `json:"version"`
	ExportedAtSeconds int64                 `json:"exported_at_s"`
	Accounts          []accounts.Account    `json:"accounts"`
	Groups            []records.Group       `json:"groups"`
	Combinations      []records.Combination `json:"combinations"`
}

// ServiceConfig describes the dependencies of the backup service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service exports, imports and resets the full data set.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
}

// NewService validates the configuration and constructs the backup service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("backup: database connection required")
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

// Export collects every table into one document.
func (s *Service) Export(ctx context.Context) (Document, error) {
	doc := Document{
		Version:           DocumentVersion,
		ExportedAtSeconds: s.now().UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Order("created_at_s ASC").Find(&doc.Accounts).Error; err != nil {
		return Document{}, fmt.Errorf("backup: export accounts: %w", err)
	}
	if err := s.db.WithContext(ctx).Find(&doc.Groups).Error; err != nil {
		return Document{}, fmt.Errorf("backup: export groups: %w", err)
	}
	if err := s.db.WithContext(ctx).Find(&doc.Combinations).Error; err != nil {
		return Document{}, fmt.Errorf("backup: export combinations: %w", err)
	}
	return doc, nil
}

// Import loads a document into the store. Every row passes the same
// validation as the live write paths before anything is touched.
func (s *Service) Import(ctx context.Context, doc Document, mode Mode) error {
	if doc.Version > DocumentVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}
	if mode != ModeReplace && mode != ModeMerge {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if err := validateDocument(doc); err != nil {
		return err
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if mode == ModeReplace {
			if err := wipe(tx); err != nil {
				return err
			}
		}
		upsert := clause.OnConflict{UpdateAll: true}
		if len(doc.Accounts) > 0 {
			if err := tx.Clauses(upsert).Create(&doc.Accounts).Error; err != nil {
				return err
			}
		}
		if len(doc.Groups) > 0 {
			if err := tx.Clauses(upsert).Create(&doc.Groups).Error; err != nil {
				return err
			}
		}
		if len(doc.Combinations) > 0 {
			if err := tx.Clauses(upsert).Create(&doc.Combinations).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		s.logger.Error("backup import failed", zap.Error(txErr), zap.String("mode", string(mode)))
		return fmt.Errorf("backup: import: %w", txErr)
	}

	s.logger.Info("backup imported",
		zap.String("mode", string(mode)),
		zap.Int("accounts", len(doc.Accounts)),
		zap.Int("groups", len(doc.Groups)),
		zap.Int("combinations", len(doc.Combinations)))
	return nil
}

// Reset deletes every row of every table.
func (s *Service) Reset(ctx context.Context) error {
	txErr := s.db.WithContext(ctx).Transaction(wipe)
	if txErr != nil {
		s.logger.Error("factory reset failed", zap.Error(txErr))
		return fmt.Errorf("backup: reset: %w", txErr)
	}
	s.logger.Warn("factory reset applied")
	return nil
}

func wipe(tx *gorm.DB) error {
	if err := tx.Where("1 = 1").Delete(&records.Combination{}).Error; err != nil {
		return err
	}
	if err := tx.Where("1 = 1").Delete(&records.Group{}).Error; err != nil {
		return err
	}
	return tx.Where("1 = 1").Delete(&accounts.Account{}).Error
}

func validateDocument(doc Document) error {
	for _, account := range doc.Accounts {
		if account.AccountID == "" || account.Email == "" {
			return fmt.Errorf("%w: account missing id or email", ErrInvalidDocument)
		}
	}
	for _, group := range doc.Groups {
		if group.GroupID == "" || group.OwnerID == "" {
			return fmt.Errorf("%w: group missing id or owner", ErrInvalidDocument)
		}
		if _, err := records.NewName(group.Name); err != nil {
			return fmt.Errorf("%w: group %s: %v", ErrInvalidDocument, group.GroupID, err)
		}
		if _, err := records.NewColor(group.Color); err != nil {
			return fmt.Errorf("%w: group %s: %v", ErrInvalidDocument, group.GroupID, err)
		}
	}
	for _, combination := range doc.Combinations {
		if combination.CombinationID == "" || combination.OwnerID == "" {
			return fmt.Errorf("%w: combination missing id or owner", ErrInvalidDocument)
		}
		if _, err := records.NewName(combination.Name); err != nil {
			return fmt.Errorf("%w: combination %s: %v", ErrInvalidDocument, combination.CombinationID, err)
		}
		numbers := combination.Numbers()
		if _, err := records.NewNumberTriple(numbers[0], numbers[1], numbers[2]); err != nil {
			return fmt.Errorf("%w: combination %s: %v", ErrInvalidDocument, combination.CombinationID, err)
		}
	}
	return nil
}
