package identity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// User is one admin entry. Password is an Argon2id PHC string.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Image    string `json:"image,omitempty"`
	Password string `json:"password"`
}

// Directory is an immutable snapshot of the users file, indexed by
// normalized email.
type Directory struct {
	users   []User
	byEmail map[string]int
}

// LoadDirectory reads path. A missing file is ErrNotFound; duplicate
// emails or ids are a ConflictError.
func LoadDirectory(path string) (*Directory, error) {
	const op = "identity.LoadDirectory"

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, OpError{Op: op, Kind: ErrNotFound, Msg: path}
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return parseDirectory(op, raw)
}

func parseDirectory(op string, raw []byte) (*Directory, error) {
	var users []User
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &users); err != nil {
			return nil, OpError{Op: op, Kind: ErrInvalidInput, Msg: "users file is not a JSON array"}
		}
	}

	d := &Directory{users: users, byEmail: make(map[string]int, len(users))}
	ids := make(map[string]struct{}, len(users))
	for i, u := range users {
		email := NormalizeEmail(u.Email)
		if email == "" || strings.TrimSpace(u.ID) == "" {
			return nil, OpError{Op: op, Kind: ErrInvalidInput, Msg: fmt.Sprintf("entry %d needs id and email", i)}
		}
		if _, dup := d.byEmail[email]; dup {
			return nil, ConflictError{Op: op, Field: "email"}
		}
		if _, dup := ids[u.ID]; dup {
			return nil, ConflictError{Op: op, Field: "id"}
		}
		d.byEmail[email] = i
		ids[u.ID] = struct{}{}
	}
	return d, nil
}

// Lookup finds a user by email, normalizing first.
func (d *Directory) Lookup(email string) (User, bool) {
	if d == nil {
		return User{}, false
	}
	i, ok := d.byEmail[NormalizeEmail(email)]
	if !ok {
		return User{}, false
	}
	return d.users[i], true
}

// Len is the number of users.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.users)
}

// AddUser appends u to the users file at path, creating it when absent.
// The write goes through a temp file and rename.
func AddUser(path string, u User) error {
	const op = "identity.AddUser"

	u.Email = NormalizeEmail(u.Email)
	if u.Email == "" || u.ID == "" || u.Password == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "id, email and password are required"}
	}

	var users []User
	d, err := LoadDirectory(path)
	switch {
	case err == nil:
		users = d.users
	case IsNotFound(err):
	default:
		return err
	}

	if _, exists := d.Lookup(u.Email); exists {
		return ConflictError{Op: op, Field: "email"}
	}
	for _, existing := range users {
		if existing.ID == u.ID {
			return ConflictError{Op: op, Field: "id"}
		}
	}
	users = append(users, u)

	out, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("%s: encode: %w", op, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	tmp, err := os.CreateTemp(dir, ".users-*.tmp")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(out); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
