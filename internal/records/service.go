package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// ServiceError couples an operation/reason code with its underlying cause.
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

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew       = "records.service.new"
	opListGroups       = "records.list_groups"
	opCreateGroup      = "records.create_group"
	opDeleteGroup      = "records.delete_group"
	opListCombinations = "records.list_combinations"
	opCreateComb       = "records.create_combination"
	opUpdateComb       = "records.update_combination"
	opDeleteComb       = "records.delete_combination"
	opListAll          = "records.list_all_combinations"
	opAdminDelete      = "records.admin_delete_combination"
	opPurgeOwner       = "records.purge_owner"
	opCount            = "records.count_combinations"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig describes the dependencies of the records service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// IDProvider issues identifiers for newly created records.
type IDProvider interface {
	NewID() (string, error)
}

// Service persists groups and combinations scoped by owning user.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService validates the configuration and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
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
		logger:     logger,
	}, nil
}

// ListGroups returns all groups owned by the user, most recent first.
func (s *Service) ListGroups(ctx context.Context, ownerID OwnerID) ([]Group, error) {
	var groups []Group
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID.String()).
		Order("created_at_s DESC").
		Find(&groups).Error
	if err != nil {
		s.logError(opListGroups, "query_failed", err, zap.String("owner_id", ownerID.String()))
		return nil, newServiceError(opListGroups, "query_failed", err)
	}
	return groups, nil
}

// CreateGroup validates and persists a new group for the owner.
func (s *Service) CreateGroup(ctx context.Context, ownerID OwnerID, rawName, rawColor string) (Group, error) {
	name, err := NewName(rawName)
	if err != nil {
		return Group{}, newServiceError(opCreateGroup, "invalid_name", err)
	}
	color, err := NewColor(rawColor)
	if err != nil {
		return Group{}, newServiceError(opCreateGroup, "invalid_color", err)
	}
	groupID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreateGroup, "id_generation_failed", err)
		return Group{}, newServiceError(opCreateGroup, "id_generation_failed", err)
	}

	group := Group{
		GroupID:          groupID,
		OwnerID:          ownerID.String(),
		Name:             name,
		Color:            color,
		CreatedAtSeconds: s.clock().UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&group).Error; err != nil {
		s.logError(opCreateGroup, "insert_failed", err, zap.String("owner_id", ownerID.String()))
		return Group{}, newServiceError(opCreateGroup, "insert_failed", err)
	}
	return group, nil
}

// DeleteGroup removes a group owned by the user. Combinations referencing the
// group keep their reference; readers resolve it to "ungrouped".
func (s *Service) DeleteGroup(ctx context.Context, ownerID OwnerID, groupID RecordID) error {
	result := s.db.WithContext(ctx).
		Where("owner_id = ? AND group_id = ?", ownerID.String(), groupID.String()).
		Delete(&Group{})
	if result.Error != nil {
		s.logError(opDeleteGroup, "delete_failed", result.Error, zap.String("owner_id", ownerID.String()))
		return newServiceError(opDeleteGroup, "delete_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return newServiceError(opDeleteGroup, "not_found", ErrNotFound)
	}
	return nil
}

// ListCombinations returns all combinations owned by the user, most recent
// first. Filtering and reordering happen in memory via Query.Apply.
func (s *Service) ListCombinations(ctx context.Context, ownerID OwnerID) ([]Combination, error) {
	var combinations []Combination
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID.String()).
		Order("created_at_s DESC").
		Find(&combinations).Error
	if err != nil {
		s.logError(opListCombinations, "query_failed", err, zap.String("owner_id", ownerID.String()))
		return nil, newServiceError(opListCombinations, "query_failed", err)
	}
	return combinations, nil
}

// CreateCombination validates the payload, checks the per-owner duplicate
// name precondition and persists the combination.
//
// The duplicate check is a read before the insert, not a storage constraint;
// two concurrent creates with the same name can both pass it. That race is an
// accepted weakness of the original design.
func (s *Service) CreateCombination(ctx context.Context, ownerID OwnerID, fields CombinationFields) (Combination, error) {
	name, err := NewName(fields.Name)
	if err != nil {
		return Combination{}, newServiceError(opCreateComb, "invalid_name", err)
	}
	numbers, err := NewNumberTriple(fields.Numbers[0], fields.Numbers[1], fields.Numbers[2])
	if err != nil {
		return Combination{}, newServiceError(opCreateComb, "invalid_number", err)
	}

	taken, err := s.nameTaken(ctx, ownerID, name, "")
	if err != nil {
		s.logError(opCreateComb, "duplicate_check_failed", err, zap.String("owner_id", ownerID.String()))
		return Combination{}, newServiceError(opCreateComb, "duplicate_check_failed", err)
	}
	if taken {
		return Combination{}, newServiceError(opCreateComb, "duplicate_name", fmt.Errorf("%w: %q", ErrDuplicateName, name))
	}

	combinationID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreateComb, "id_generation_failed", err)
		return Combination{}, newServiceError(opCreateComb, "id_generation_failed", err)
	}

	combination := Combination{
		CombinationID:    combinationID,
		OwnerID:          ownerID.String(),
		Name:             name,
		FirstNumber:      numbers[0],
		SecondNumber:     numbers[1],
		ThirdNumber:      numbers[2],
		GroupID:          canonicalID(fields.GroupID),
		Notes:            fields.Notes,
		CreatedAtSeconds: s.clock().UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&combination).Error; err != nil {
		s.logError(opCreateComb, "insert_failed", err, zap.String("owner_id", ownerID.String()))
		return Combination{}, newServiceError(opCreateComb, "insert_failed", err)
	}
	return combination, nil
}

// UpdateCombination mutates name, numbers, group and notes of an existing
// combination. Identity, owner and creation time never change.
func (s *Service) UpdateCombination(ctx context.Context, ownerID OwnerID, combinationID RecordID, fields CombinationFields) (Combination, error) {
	name, err := NewName(fields.Name)
	if err != nil {
		return Combination{}, newServiceError(opUpdateComb, "invalid_name", err)
	}
	numbers, err := NewNumberTriple(fields.Numbers[0], fields.Numbers[1], fields.Numbers[2])
	if err != nil {
		return Combination{}, newServiceError(opUpdateComb, "invalid_number", err)
	}

	var existing Combination
	err = s.db.WithContext(ctx).
		Where("owner_id = ? AND combination_id = ?", ownerID.String(), combinationID.String()).
		Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Combination{}, newServiceError(opUpdateComb, "not_found", ErrNotFound)
	}
	if err != nil {
		s.logError(opUpdateComb, "select_failed", err, zap.String("owner_id", ownerID.String()))
		return Combination{}, newServiceError(opUpdateComb, "select_failed", err)
	}

	if name != existing.Name {
		taken, err := s.nameTaken(ctx, ownerID, name, existing.CombinationID)
		if err != nil {
			s.logError(opUpdateComb, "duplicate_check_failed", err, zap.String("owner_id", ownerID.String()))
			return Combination{}, newServiceError(opUpdateComb, "duplicate_check_failed", err)
		}
		if taken {
			return Combination{}, newServiceError(opUpdateComb, "duplicate_name", fmt.Errorf("%w: %q", ErrDuplicateName, name))
		}
	}

	existing.Name = name
	existing.FirstNumber = numbers[0]
	existing.SecondNumber = numbers[1]
	existing.ThirdNumber = numbers[2]
	existing.GroupID = canonicalID(fields.GroupID)
	existing.Notes = fields.Notes
	if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
		s.logError(opUpdateComb, "save_failed", err, zap.String("owner_id", ownerID.String()))
		return Combination{}, newServiceError(opUpdateComb, "save_failed", err)
	}
	return existing, nil
}

// DeleteCombination removes a combination owned by the user.
func (s *Service) DeleteCombination(ctx context.Context, ownerID OwnerID, combinationID RecordID) error {
	result := s.db.WithContext(ctx).
		Where("owner_id = ? AND combination_id = ?", ownerID.String(), combinationID.String()).
		Delete(&Combination{})
	if result.Error != nil {
		s.logError(opDeleteComb, "delete_failed", result.Error, zap.String("owner_id", ownerID.String()))
		return newServiceError(opDeleteComb, "delete_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return newServiceError(opDeleteComb, "not_found", ErrNotFound)
	}
	return nil
}

// ListAllCombinations returns every combination across all owners, most
// recent first. Administrative scope only; callers enforce the role check.
func (s *Service) ListAllCombinations(ctx context.Context) ([]Combination, error) {
	var combinations []Combination
	err := s.db.WithContext(ctx).
		Order("created_at_s DESC").
		Find(&combinations).Error
	if err != nil {
		s.logError(opListAll, "query_failed", err)
		return nil, newServiceError(opListAll, "query_failed", err)
	}
	return combinations, nil
}

// ListAllGroups returns every group across all owners.
func (s *Service) ListAllGroups(ctx context.Context) ([]Group, error) {
	var groups []Group
	if err := s.db.WithContext(ctx).Find(&groups).Error; err != nil {
		s.logError(opListAll, "group_query_failed", err)
		return nil, newServiceError(opListAll, "group_query_failed", err)
	}
	return groups, nil
}

// AdminDeleteCombination removes a combination regardless of owner.
func (s *Service) AdminDeleteCombination(ctx context.Context, combinationID RecordID) error {
	result := s.db.WithContext(ctx).
		Where("combination_id = ?", combinationID.String()).
		Delete(&Combination{})
	if result.Error != nil {
		s.logError(opAdminDelete, "delete_failed", result.Error, zap.String("combination_id", combinationID.String()))
		return newServiceError(opAdminDelete, "delete_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return newServiceError(opAdminDelete, "not_found", ErrNotFound)
	}
	return nil
}

// PurgeOwner removes all groups and combinations belonging to the owner.
// Used when an account is deleted by administrative moderation.
func (s *Service) PurgeOwner(ctx context.Context, ownerID OwnerID) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ?", ownerID.String()).Delete(&Combination{}).Error; err != nil {
			return err
		}
		return tx.Where("owner_id = ?", ownerID.String()).Delete(&Group{}).Error
	})
	if txErr != nil {
		s.logError(opPurgeOwner, "purge_failed", txErr, zap.String("owner_id", ownerID.String()))
		return newServiceError(opPurgeOwner, "purge_failed", txErr)
	}
	return nil
}

// CountCombinations reports the total number of stored combinations. Used by
// the administrative health probe.
func (s *Service) CountCombinations(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Combination{}).Count(&count).Error; err != nil {
		s.logError(opCount, "count_failed", err)
		return 0, newServiceError(opCount, "count_failed", err)
	}
	return count, nil
}

// nameTaken reports whether the owner already has a combination with the
// exact name, excluding the record identified by excludeID when non-empty.
func (s *Service) nameTaken(ctx context.Context, ownerID OwnerID, name, excludeID string) (bool, error) {
	query := s.db.WithContext(ctx).Model(&Combination{}).
		Where("owner_id = ? AND name = ?", ownerID.String(), name)
	if excludeID != "" {
		query = query.Where("combination_id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
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
	s.loggerOrDefault().Error("records service error", attrs...)
}
