package records

import (
	"errors"
	"fmt"
	"strings"
)

const maxIdentifierLength = 190

// GroupColors is the fixed palette accepted for group color tags.
var GroupColors = []string{
	"bg-red-500",
	"bg-orange-500",
	"bg-amber-500",
	"bg-yellow-500",
	"bg-lime-500",
	"bg-green-500",
	"bg-emerald-500",
	"bg-teal-500",
	"bg-cyan-500",
	"bg-sky-500",
	"bg-blue-500",
	"bg-indigo-500",
	"bg-violet-500",
	"bg-purple-500",
	"bg-fuchsia-500",
	"bg-pink-500",
	"bg-rose-500",
}

var (
	// ErrInvalidOwnerID indicates that an owner identifier is empty or exceeds storage bounds.
	ErrInvalidOwnerID = errors.New("records: invalid owner id")
	// ErrInvalidRecordID indicates that a record identifier is empty or exceeds storage bounds.
	ErrInvalidRecordID = errors.New("records: invalid record id")
	// ErrInvalidName indicates that a group or combination name is empty or exceeds storage bounds.
	ErrInvalidName = errors.New("records: invalid name")
	// ErrInvalidColor indicates that a color tag is not part of the fixed palette.
	ErrInvalidColor = errors.New("records: invalid color")
	// ErrInvalidNumber indicates that a combination number falls outside [0, 99].
	ErrInvalidNumber = errors.New("records: number out of range")
	// ErrDuplicateName indicates that the owner already has a combination with the same name.
	ErrDuplicateName = errors.New("records: duplicate combination name")
	// ErrNotFound indicates that the addressed record does not exist in the caller's scope.
	ErrNotFound = errors.New("records: record not found")
)

// OwnerID represents a validated owning-user identifier.
type OwnerID string

// NewOwnerID validates raw input and returns an OwnerID.
func NewOwnerID(rawInput string) (OwnerID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidOwnerID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidOwnerID, maxIdentifierLength)
	}
	return OwnerID(trimmed), nil
}

// String returns the underlying string identifier.
func (id OwnerID) String() string {
	return string(id)
}

// RecordID represents a validated group or combination identifier.
type RecordID string

// NewRecordID validates raw input and returns a RecordID.
func NewRecordID(rawInput string) (RecordID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidRecordID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidRecordID, maxIdentifierLength)
	}
	return RecordID(trimmed), nil
}

// String returns the underlying string identifier.
func (id RecordID) String() string {
	return string(id)
}

// NewName trims surrounding whitespace and rejects empty or oversized names.
// The trimmed form is what gets persisted and what the duplicate check compares.
func NewName(rawInput string) (string, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidName, maxIdentifierLength)
	}
	return trimmed, nil
}

// NewColor validates a color tag against the fixed palette.
func NewColor(rawInput string) (string, error) {
	trimmed := strings.TrimSpace(rawInput)
	for _, candidate := range GroupColors {
		if candidate == trimmed {
			return trimmed, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidColor, rawInput)
}

// NumberTriple holds the three stored numbers of a combination, each in [0, 99].
type NumberTriple [3]int

// NewNumberTriple validates each element against the allowed range.
func NewNumberTriple(first, second, third int) (NumberTriple, error) {
	triple := NumberTriple{first, second, third}
	for _, value := range triple {
		if value < 0 || value > 99 {
			return NumberTriple{}, fmt.Errorf("%w: %d", ErrInvalidNumber, value)
		}
	}
	return triple, nil
}

// Group models a user-owned colored bucket for combinations.
type Group struct {
	GroupID          string `gorm:"column:group_id;primaryKey;size:190;not null" json:"group_id"`
	OwnerID          string `gorm:"column:owner_id;size:190;not null;index:idx_groups_owner" json:"owner_id"`
	Name             string `gorm:"column:name;size:190;not null" json:"name"`
	Color            string `gorm:"column:color;size:64;not null" json:"color"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null" json:"created_at_s"`
}

// TableName provides the explicit table binding for GORM.
func (Group) TableName() string {
	return "groups"
}

// Combination models the persisted named number triple.
//
// GroupID and Notes use the empty string as "absent". A non-empty GroupID is
// not guaranteed to resolve: deleting a group leaves references dangling and
// readers treat them as ungrouped.
type Combination struct {
	CombinationID    string `gorm:"column:combination_id;primaryKey;size:190;not null" json:"combination_id"`
	OwnerID          string `gorm:"column:owner_id;size:190;not null;index:idx_combinations_owner_created,priority:1" json:"owner_id"`
	Name             string `gorm:"column:name;size:190;not null" json:"name"`
	FirstNumber      int    `gorm:"column:first_number;not null" json:"first_number"`
	SecondNumber     int    `gorm:"column:second_number;not null" json:"second_number"`
	ThirdNumber      int    `gorm:"column:third_number;not null" json:"third_number"`
	GroupID          string `gorm:"column:group_id;size:190;not null;default:''" json:"group_id"`
	Notes            string `gorm:"column:notes;type:text;not null;default:''" json:"notes"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null;index:idx_combinations_owner_created,priority:2" json:"created_at_s"`
}

// TableName provides the explicit table binding for GORM.
func (Combination) TableName() string {
	return "combinations"
}

// Numbers returns the stored triple in order.
func (c Combination) Numbers() NumberTriple {
	return NumberTriple{c.FirstNumber, c.SecondNumber, c.ThirdNumber}
}

// CombinationFields carries the mutable attributes of a combination for
// create and update operations.
type CombinationFields struct {
	Name    string
	Numbers NumberTriple
	GroupID string
	Notes   string
}
