// Package domain holds the identifiers shared by every pipeline stage: the
// subject identifier and the object key that namespaces a stored capture.
package domain

import (
	"regexp"
	"unicode/utf8"

	dErrors "listcart/pkg/domain-errors"
)

// maxSubjectLen bounds subject identifiers; identity providers issue UUIDs or
// similar short opaque strings.
const maxSubjectLen = 128

var subjectPattern = regexp.MustCompile(`^[A-Za-z0-9._@:-]+$`)

// SubjectID is the authenticated user's stable identity claim. It is the first
// segment of every object key and the owner of every cart mutation.
type SubjectID string

func (s SubjectID) String() string { return string(s) }

// IsNil reports whether the subject is empty.
func (s SubjectID) IsNil() bool { return s == "" }

// ParseSubjectID validates that raw can serve as a single object-key segment.
func ParseSubjectID(raw string) (SubjectID, error) {
	if raw == "" {
		return "", dErrors.New(dErrors.CodeValidation, "subject identifier is required")
	}
	if !utf8.ValidString(raw) || len(raw) > maxSubjectLen {
		return "", dErrors.New(dErrors.CodeValidation, "subject identifier is malformed")
	}
	if raw == "." || raw == ".." || !subjectPattern.MatchString(raw) {
		return "", dErrors.New(dErrors.CodeValidation, "subject identifier is malformed")
	}
	return SubjectID(raw), nil
}
