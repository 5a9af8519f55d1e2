package domain

import (
	"regexp"

	dErrors "listcart/pkg/domain-errors"
)

var bucketPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,62}$`)

// ObjectRef is the bucket/key identity of a Stored Image Object as delivered
// by object-created events.
type ObjectRef struct {
	Bucket string
	Key    ObjectKey
}

func (r ObjectRef) String() string {
	return r.Bucket + "/" + r.Key.String()
}

// ValidateBucket checks a bucket name.
func ValidateBucket(bucket string) error {
	if !bucketPattern.MatchString(bucket) {
		return dErrors.New(dErrors.CodeValidation, "invalid bucket name")
	}
	return nil
}

// ParseObjectRef validates a bucket and raw key pair.
func ParseObjectRef(bucket, rawKey string) (ObjectRef, error) {
	if err := ValidateBucket(bucket); err != nil {
		return ObjectRef{}, err
	}
	key, err := ParseObjectKey(rawKey)
	if err != nil {
		return ObjectRef{}, err
	}
	return ObjectRef{Bucket: bucket, Key: key}, nil
}
