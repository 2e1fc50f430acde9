// Package student contains the student classification model.
//
// Every student category implements the same capability:
//
//	type Student interface {
//	    Category() Category
//	    RequiredHours(id StudentID) (Hours, error)
//	}
//
// FullTimeStudent and PartTimeStudent always succeed (15 and 10 hours).
// VisitorStudent always fails with shared.ErrRequiredHoursNotApplicable:
// visitors are outside the required-hours policy. The failure is part of the
// signature for every variant, so a caller holding a Student must handle it:
//
//	s, err := student.New(student.CategoryVisitor)
//	if err != nil {
//	    return err
//	}
//	hours, err := s.RequiredHours(id)
//	if shared.IsNotApplicable(err) {
//	    // visitor
//	}
//
// Enrollment is the persisted record that maps an ID to a category.
// Repository and Cache are implemented in infrastructure/persistence.
//
// The package has no external dependencies.
package student
