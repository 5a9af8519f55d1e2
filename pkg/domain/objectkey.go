package domain

import (
	"strconv"
	"strings"
	"time"

	dErrors "listcart/pkg/domain-errors"
)

// ImageExt is the only extension the issuer hands out.
const ImageExt = ".jpg"

// ObjectKey identifies one Stored Image Object: "{subjectId}/{epochMillis}.jpg".
// The subject prefix is the sole ownership record; downstream stages never
// derive the subject from anything else.
type ObjectKey struct {
	Subject SubjectID
	Millis  int64
}

// NewObjectKey builds a key for subject captured at t.
func NewObjectKey(subject SubjectID, t time.Time) ObjectKey {
	return ObjectKey{Subject: subject, Millis: t.UnixMilli()}
}

func (k ObjectKey) String() string {
	return k.Subject.String() + "/" + strconv.FormatInt(k.Millis, 10) + ImageExt
}

// CapturedAt returns the capture time encoded in the key.
func (k ObjectKey) CapturedAt() time.Time {
	return time.UnixMilli(k.Millis).UTC()
}

// ParseObjectKey parses and validates a key produced by NewObjectKey.
func ParseObjectKey(raw string) (ObjectKey, error) {
	subjectPart, file, ok := strings.Cut(raw, "/")
	if !ok || strings.Contains(file, "/") {
		return ObjectKey{}, dErrors.New(dErrors.CodeValidation, "object key must have exactly two segments")
	}
	subject, err := ParseSubjectID(subjectPart)
	if err != nil {
		return ObjectKey{}, err
	}
	digits, ok := strings.CutSuffix(file, ImageExt)
	if !ok || digits == "" {
		return ObjectKey{}, dErrors.New(dErrors.CodeValidation, "object key must end in epoch millis and "+ImageExt)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return ObjectKey{}, dErrors.New(dErrors.CodeValidation, "object key timestamp must be decimal digits")
		}
	}
	millis, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return ObjectKey{}, dErrors.New(dErrors.CodeValidation, "object key timestamp out of range")
	}
	key := ObjectKey{Subject: subject, Millis: millis}
	if key.String() != raw {
		// Leading zeros would let two raw keys map to one object.
		return ObjectKey{}, dErrors.New(dErrors.CodeValidation, "object key is not canonical")
	}
	return key, nil
}
