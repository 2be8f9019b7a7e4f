// Package uriopts turns connection URIs into option maps and file paths.
package uriopts

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	intPattern   = regexp.MustCompile(`^\d+$`)
	floatPattern = regexp.MustCompile(`^\d+\.\d+$`)
)

// Parse parses raw as an absolute URI. A URI without a scheme is rejected.
func Parse(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" {
		return nil, errors.New("missing scheme")
	}
	return u, nil
}

// ParseQueryOptions converts the query parameters of u into an option map.
//
// Values are typed by their literal text: "true"/"false" become bool, digit-only
// strings become int64, digits.digits become float64 and everything else stays
// a string. If a key is repeated the last occurrence wins. Integers that do not
// fit into an int64 are kept as strings.
func ParseQueryOptions(u *url.URL) map[string]any {
	options := make(map[string]any)

	for _, pair := range splitQuery(u.RawQuery) {
		options[pair[0]] = convert(pair[1])
	}

	return options
}

// convert auto-types a single query value
func convert(value string) any {
	switch {
	case value == "true":
		return true
	case value == "false":
		return false
	case intPattern.MatchString(value):
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
		return value
	case floatPattern.MatchString(value):
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		return value
	default:
		return value
	}
}

// splitQuery splits a raw query into decoded key/value pairs, keeping their order.
// url.Values cannot be used here since it does not preserve the order of keys.
// Pairs that fail to decode are skipped, like url.ParseQuery does.
func splitQuery(rawQuery string) [][2]string {
	var pairs [][2]string
	for rawQuery != "" {
		var part string
		part, rawQuery, _ = strings.Cut(rawQuery, "&")
		if part == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			continue
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			continue
		}
		pairs = append(pairs, [2]string{key, value})
	}
	return pairs
}

// ResolvePath resolves a file-style URI to a concrete path and makes sure the
// parent directory exists.
//
//	file://~/a/b.json  -> <home>/a/b.json
//	file://./a/b.json  -> <cwd>/a/b.json
//	file:///a/b.json   -> /a/b.json
func ResolvePath(u *url.URL) (string, error) {
	path := u.Path

	switch u.Host {
	case "~":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "/"))
	case ".":
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("could not resolve working directory: %w", err)
		}
		path = filepath.Join(cwd, strings.TrimPrefix(path, "/"))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("could not create directory for %s: %w", path, err)
	}

	return path, nil
}
