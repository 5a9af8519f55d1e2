package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"listcart/pkg/domain"
)

type usersFile struct {
	Users []User `yaml:"users"`
}

// UserDirectory resolves usernames to credential records.
type UserDirectory struct {
	byUsername map[string]User
}

// NewUserDirectory validates users and indexes them by username.
func NewUserDirectory(users []User) (*UserDirectory, error) {
	dir := &UserDirectory{byUsername: make(map[string]User, len(users))}
	for _, u := range users {
		if u.Username == "" || u.PasswordHash == "" {
			return nil, fmt.Errorf("user entry requires username and password_hash")
		}
		if u.Subject == "" {
			u.Subject = u.Username
		}
		if _, err := domain.ParseSubjectID(u.Subject); err != nil {
			return nil, fmt.Errorf("user %q: %w", u.Username, err)
		}
		if _, dup := dir.byUsername[u.Username]; dup {
			return nil, fmt.Errorf("duplicate username %q", u.Username)
		}
		dir.byUsername[u.Username] = u
	}
	return dir, nil
}

// LoadUserDirectory reads a YAML users file.
func LoadUserDirectory(path string) (*UserDirectory, error) {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 - operator supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}
	var f usersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse users file: %w", err)
	}
	return NewUserDirectory(f.Users)
}

// HashPassword returns a bcrypt hash suitable for the users file.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify returns the user's subject when password matches.
func (d *UserDirectory) Verify(username, password string) (domain.SubjectID, bool) {
	u, ok := d.byUsername[username]
	if !ok {
		// Burn comparable time so unknown usernames are not distinguishable.
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return "", false
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", false
	}
	return domain.SubjectID(u.Subject), true
}

var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("listcart-unknown-user"), bcrypt.DefaultCost)
	return hash
})
