package student

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/alem-hub/study-hours/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// StudentID is an opaque student identifier.
type StudentID string

// MaxStudentIDLength bounds a storage key, in characters.
const MaxStudentIDLength = 64

// IsValid reports whether the ID can be used as a storage key: 1 to 64
// characters with no leading or trailing whitespace, so the key that is
// validated is the key that is stored.
func (id StudentID) IsValid() bool {
	s := string(id)
	if s == "" || s != strings.TrimSpace(s) {
		return false
	}
	return utf8.RuneCountInString(s) <= MaxStudentIDLength
}

// String returns the string representation of the ID.
func (id StudentID) String() string {
	return string(id)
}

// Hours is a number of required study hours.
type Hours int

// Required hours per category.
const (
	FullTimeHours Hours = 15
	PartTimeHours Hours = 10
)

// ══════════════════════════════════════════════════════════════════════════════
// CATEGORY
// ══════════════════════════════════════════════════════════════════════════════

// Category identifies the student variant.
type Category string

const (
	// CategoryFullTime - full-time enrollment.
	CategoryFullTime Category = "full_time"
	// CategoryPartTime - part-time enrollment.
	CategoryPartTime Category = "part_time"
	// CategoryVisitor - visiting student, outside the required-hours policy.
	CategoryVisitor Category = "visitor"
)

// Categories lists every known category.
func Categories() []Category {
	return []Category{CategoryFullTime, CategoryPartTime, CategoryVisitor}
}

// IsValid checks that the category is known.
func (c Category) IsValid() bool {
	switch c {
	case CategoryFullTime, CategoryPartTime, CategoryVisitor:
		return true
	default:
		return false
	}
}

// String returns the string representation of the category.
func (c Category) String() string {
	return string(c)
}

// ParseCategory parses "full_time", "Full-Time", "visitor" and friends.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !c.IsValid() {
		return "", shared.ErrInvalidCategory
	}
	return c, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT VARIANTS
// ══════════════════════════════════════════════════════════════════════════════

// Student is the capability shared by every category.
//
// RequiredHours returns an error for categories that have no required hours,
// so callers must handle the failure even when they hold a variant that never
// produces one.
type Student interface {
	Category() Category
	RequiredHours(id StudentID) (Hours, error)
}

// FullTimeStudent is enrolled full time.
type FullTimeStudent struct{}

// Category returns CategoryFullTime.
func (FullTimeStudent) Category() Category { return CategoryFullTime }

// RequiredHours always returns FullTimeHours.
func (FullTimeStudent) RequiredHours(StudentID) (Hours, error) {
	return FullTimeHours, nil
}

// PartTimeStudent is enrolled part time.
type PartTimeStudent struct{}

// Category returns CategoryPartTime.
func (PartTimeStudent) Category() Category { return CategoryPartTime }

// RequiredHours always returns PartTimeHours.
func (PartTimeStudent) RequiredHours(StudentID) (Hours, error) {
	return PartTimeHours, nil
}

// VisitorStudent is not covered by the required-hours policy.
type VisitorStudent struct{}

// Category returns CategoryVisitor.
func (VisitorStudent) Category() Category { return CategoryVisitor }

// RequiredHours always fails with shared.ErrRequiredHoursNotApplicable.
func (VisitorStudent) RequiredHours(StudentID) (Hours, error) {
	return 0, shared.ErrRequiredHoursNotApplicable
}

var (
	_ Student = FullTimeStudent{}
	_ Student = PartTimeStudent{}
	_ Student = VisitorStudent{}
)

// New returns the variant for a category.
func New(c Category) (Student, error) {
	switch c {
	case CategoryFullTime:
		return FullTimeStudent{}, nil
	case CategoryPartTime:
		return PartTimeStudent{}, nil
	case CategoryVisitor:
		return VisitorStudent{}, nil
	default:
		return nil, shared.ErrInvalidCategory
	}
}

// Applies reports whether RequiredHours is defined for s.
func Applies(s Student) bool {
	_, err := s.RequiredHours("")
	return !errors.Is(err, shared.ErrNotApplicable)
}
