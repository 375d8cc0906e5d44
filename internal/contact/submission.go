// Package contact holds the contact form's field validation and the
// submission lifecycle that sits between the form and an email relay.
package contact

import "errors"

// Field names as they appear in the form and in FieldErrors.
const (
	FieldName    = "name"
	FieldEmail   = "email"
	FieldSubject = "subject"
	FieldMessage = "message"
)

// Fields lists the form fields in display order.
var Fields = []string{FieldName, FieldEmail, FieldSubject, FieldMessage}

// ErrUnknownField is returned when a caller names a field the form does not have.
var ErrUnknownField = errors.New("contact: unknown field")

// Submission is the in-memory record behind one form interaction.
// It is never persisted.
type Submission struct {
	Name    string `form:"name" json:"name"`
	Email   string `form:"email" json:"email"`
	Subject string `form:"subject" json:"subject"`
	Message string `form:"message" json:"message"`
}

// Get returns the value of the named field.
func (s Submission) Get(field string) (string, error) {
	switch field {
	case FieldName:
		return s.Name, nil
	case FieldEmail:
		return s.Email, nil
	case FieldSubject:
		return s.Subject, nil
	case FieldMessage:
		return s.Message, nil
	}
	return "", ErrUnknownField
}

// With returns a copy of s with the named field set to value.
func (s Submission) With(field, value string) (Submission, error) {
	switch field {
	case FieldName:
		s.Name = value
	case FieldEmail:
		s.Email = value
	case FieldSubject:
		s.Subject = value
	case FieldMessage:
		s.Message = value
	default:
		return s, ErrUnknownField
	}
	return s, nil
}

// IsZero reports whether every field is the empty string.
func (s Submission) IsZero() bool {
	return s == Submission{}
}
