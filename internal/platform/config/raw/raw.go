// Package raw is the bootstrap env reader used before the logger exists.
// It must not import the logger package
package raw

import (
	"os"
	"strconv"
	"strings"
)

// Conf is a namespaced, logger-free view over environment variables
type Conf struct{ prefix string }

// New returns a root Conf
func New() Conf { return Conf{} }

// Prefix returns a child Conf, e.g. New().Prefix("LOG_")
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p} }

func (c Conf) lookup(k string) string { return strings.TrimSpace(os.Getenv(c.prefix + k)) }

// Get returns the trimmed value or def when unset or blank
func (c Conf) Get(key, def string) string {
	if v := c.lookup(key); v != "" {
		return v
	}
	return def
}

// GetBool accepts 1/true/yes/on as true; anything else set is false
func (c Conf) GetBool(key string, def bool) bool {
	v := strings.ToLower(c.lookup(key))
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// GetInt parses a non-negative integer; invalid or negative values yield def
func (c Conf) GetInt(key string, def int) int {
	v := c.lookup(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
