package contact

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Messages shown inline beneath a failing field.
const (
	MsgNameRequired    = "Name is required"
	MsgEmailRequired   = "Email is required"
	MsgEmailInvalid    = "Please enter a valid email"
	MsgSubjectRequired = "Subject is required"
	MsgMessageRequired = "Message is required"
	MsgMessageTooShort = "Message must be at least 10 characters"
)

// MinMessageLength is the minimum trimmed message length, in characters.
const MinMessageLength = 10

// emailPattern treats vertical tab, Unicode separators and the BOM as
// whitespace too, so "non-space" means the same thing it does in a browser.
var emailPattern = regexp.MustCompile(`^[^\s\x0B\p{Z}\x{FEFF}@]+@[^\s\x0B\p{Z}\x{FEFF}@]+\.[^\s\x0B\p{Z}\x{FEFF}@]+$`)

// FieldErrors maps a field name to the message for its failing rule.
// Fields that pass are absent.
type FieldErrors map[string]string

// Has reports whether field has an error.
func (fe FieldErrors) Has(field string) bool {
	_, ok := fe[field]
	return ok
}

// Clone returns an independent copy. A nil receiver yields an empty map.
func (fe FieldErrors) Clone() FieldErrors {
	out := make(FieldErrors, len(fe))
	for k, v := range fe {
		out[k] = v
	}
	return out
}

// Validate runs every rule against s and returns the failures.
// Rules for a field run in order and a later failing rule replaces an
// earlier message, so an empty message reports the length rule.
func Validate(s Submission) FieldErrors {
	errs := FieldErrors{}

	if strings.TrimSpace(s.Name) == "" {
		errs[FieldName] = MsgNameRequired
	}

	if strings.TrimSpace(s.Email) == "" {
		errs[FieldEmail] = MsgEmailRequired
	} else if !emailPattern.MatchString(s.Email) {
		errs[FieldEmail] = MsgEmailInvalid
	}

	if strings.TrimSpace(s.Subject) == "" {
		errs[FieldSubject] = MsgSubjectRequired
	}

	msg := strings.TrimSpace(s.Message)
	if msg == "" {
		errs[FieldMessage] = MsgMessageRequired
	}
	if utf8.RuneCountInString(msg) < MinMessageLength {
		errs[FieldMessage] = MsgMessageTooShort
	}

	return errs
}
