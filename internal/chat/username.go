package chat

import (
	"fmt"
	"regexp"
	"strings"
)

const MaxUsernameLength = 20

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_ ]+$`)

// NormalizeUsername trims the given name and checks it against the username rules:
// 1 to 20 characters, ASCII letters, digits, underscore or space only.
func NormalizeUsername(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: username is empty", ErrInvalidUsername)
	}
	if len(name) > MaxUsernameLength {
		return "", fmt.Errorf("%w: username longer than %d characters", ErrInvalidUsername, MaxUsernameLength)
	}
	if !usernamePattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q contains disallowed characters", ErrInvalidUsername, name)
	}
	return name, nil
}
