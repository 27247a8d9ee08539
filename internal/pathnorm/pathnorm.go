// Package pathnorm converts between the two textual path conventions
// archive formats use on disk: Windows-style ("\"-separated,
// Bethesda/Valve formats) and POSIX-style ("/"-separated, everything
// else). It has no conversion to or from host paths and never touches the
// host filesystem; it is pure string surgery (spec C2).
package pathnorm

import (
	"errors"
	"strings"
)

// ErrInvalidComponent is returned when a path contains a root, a volume
// prefix, ".", or "..": anything that is not a "normal" component.
var ErrInvalidComponent = errors.New("pathnorm: path has a non-normal component")

// Normal reports whether every component of path (split on sep) is a
// normal component: nonempty, not "." or "..".
func Normal(path string, sep byte) bool {
	if path == "" {
		return false
	}
	for _, c := range splitOn(path, sep) {
		if !normalComponent(c) {
			return false
		}
	}
	return true
}

func normalComponent(c string) bool {
	return c != "" && c != "." && c != ".."
}

// FromWindows splits a "\"-separated path into normal components.
func FromWindows(path string) ([]string, error) { return splitNormal(path, '\\') }

// FromPOSIX splits a "/"-separated path into normal components.
func FromPOSIX(path string) ([]string, error) { return splitNormal(path, '/') }

func splitNormal(path string, sep byte) ([]string, error) {
	if path == "" {
		return nil, ErrInvalidComponent
	}
	parts := splitOn(path, sep)
	for _, c := range parts {
		if !normalComponent(c) {
			return nil, ErrInvalidComponent
		}
	}
	return parts, nil
}

// ToWindows joins normal components with "\", failing if any component is
// non-normal.
func ToWindows(components []string) (string, error) { return join(components, '\\') }

// ToPOSIX joins normal components with "/", failing if any component is
// non-normal.
func ToPOSIX(components []string) (string, error) { return join(components, '/') }

func join(components []string, sep byte) (string, error) {
	for _, c := range components {
		if !normalComponent(c) {
			return "", ErrInvalidComponent
		}
	}
	return strings.Join(components, string(sep)), nil
}

// WindowsToPOSIX converts a "\"-separated path directly to "/"-separated.
func WindowsToPOSIX(path string) (string, error) {
	c, err := FromWindows(path)
	if err != nil {
		return "", err
	}
	return ToPOSIX(c)
}

// POSIXToWindows converts a "/"-separated path directly to "\"-separated.
func POSIXToWindows(path string) (string, error) {
	c, err := FromPOSIX(path)
	if err != nil {
		return "", err
	}
	return ToWindows(c)
}

func splitOn(path string, sep byte) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, string(sep))
}
