package domain

import (
	"strings"
	"testing"
)

// FuzzParseObjectKey checks that parsing never panics and that every accepted
// key round-trips and keeps its subject as the first path segment.
func FuzzParseObjectKey(f *testing.F) {
	f.Add("user-42/1718000000123.jpg")
	f.Add("")
	f.Add("../../etc/passwd")
	f.Add("a/b/c.jpg")
	f.Add("user/00.jpg")
	f.Add("user/99999999999999999999.jpg")

	f.Fuzz(func(t *testing.T, input string) {
		key, err := ParseObjectKey(input)
		if err != nil {
			return
		}
		if key.String() != input {
			t.Errorf("accepted key did not round-trip: %q -> %q", input, key.String())
		}
		if !strings.HasPrefix(input, key.Subject.String()+"/") {
			t.Errorf("subject %q is not the key prefix of %q", key.Subject, input)
		}
		if strings.Contains(key.Subject.String(), "/") {
			t.Errorf("subject contains a separator: %q", key.Subject)
		}
	})
}
