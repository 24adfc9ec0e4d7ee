package repo

import (
	"fmt"
	"strings"
)

// PID is a persistent identifier of a repository object,
// namespaced as "namespace:localname".
type PID string

// ParsePID validates and returns a PID.
func ParsePID(s string) (PID, error) {
	p := PID(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: malformed pid %q", ErrInvalidArgument, s)
	}
	return p, nil
}

// Valid reports whether the PID has the namespace:localname form
// with both halves non-empty.
func (p PID) Valid() bool {
	ns, local, ok := strings.Cut(string(p), ":")
	return ok && ns != "" && local != "" && !strings.ContainsAny(string(p), " \t\n")
}

// Namespace returns the namespace prefix, or "" for a malformed PID.
func (p PID) Namespace() string {
	ns, _, ok := strings.Cut(string(p), ":")
	if !ok {
		return ""
	}
	return ns
}

func (p PID) String() string {
	return string(p)
}
