package graph

import (
	"strings"

	"tangle/internal/core/errors"
)

// ParseLevel validates a configured analysis level. An unknown value is a
// hard error: the caller passed a bad configuration and must be told.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelNamespace:
		return LevelNamespace, nil
	case LevelType:
		return LevelType, nil
	case LevelSystem:
		return LevelSystem, nil
	}
	err := errors.New(errors.CodeValidationError, "unsupported analysis level")
	return "", errors.AddContext(err, errors.CtxLevel, s)
}
