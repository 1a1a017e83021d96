package record

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrBadSubjectKey = errors.New("bad dot number")

var dotNumberPattern = regexp.MustCompile(`^\d{1,10}$`)

// NormalizeSubjectKey trims a DOT number and checks that it is 1 to 10 digits.
func NormalizeSubjectKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if !dotNumberPattern.MatchString(key) {
		return "", fmt.Errorf("%w: %q", ErrBadSubjectKey, key)
	}
	return key, nil
}
