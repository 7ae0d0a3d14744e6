// Package horosafe holds the path and I/O guards used where untrusted names
// and uploads reach the filesystem: snapshot ids from HTTP paths, source
// file names from the uploads directory, and bounded reads of workbook
// bytes.
package horosafe

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"
)

// ErrPathTraversal is returned when a user-supplied path escapes its base.
var ErrPathTraversal = errors.New("horosafe: path traversal detected")

// ErrTooLarge is returned by LimitedReadAll when the input exceeds its cap.
var ErrTooLarge = errors.New("horosafe: input too large")

// SafePath joins base and name and verifies the result stays under base.
func SafePath(base, name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrPathTraversal
	}
	cleaned := filepath.Join(base, filepath.Clean("/"+name))
	root := filepath.Clean(base)
	if cleaned != root && !strings.HasPrefix(cleaned, root+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return cleaned, nil
}

// ValidateName rejects names that are not a single path element: empty or
// overlong names, "..", separators and control characters.
func ValidateName(s string) error {
	if s == "" {
		return fmt.Errorf("horosafe: name must not be empty")
	}
	if len(s) > 255 {
		return fmt.Errorf("horosafe: name too long (max 255)")
	}
	if s == "." || strings.Contains(s, "..") {
		return ErrPathTraversal
	}
	for _, r := range s {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return fmt.Errorf("horosafe: invalid character %q in name", r)
		}
	}
	return nil
}

// LimitedReadAll reads at most maxBytes from r and fails with ErrTooLarge
// past that.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrTooLarge, maxBytes)
	}
	return data, nil
}
