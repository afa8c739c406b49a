package memory

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidNamespace is returned for empty namespaces or malformed segments.
var ErrInvalidNamespace = errors.New("invalid namespace")

// UserIDPlaceholder is replaced by the caller's user ID in namespace templates.
const UserIDPlaceholder = "{user_id}"

// Namespace is an ordered tuple of segments partitioning stored items,
// e.g. ("user_facts", "user123").
type Namespace []string

// NewNamespace builds a namespace from segments.
func NewNamespace(segments ...string) Namespace {
	return Namespace(segments)
}

// Validate checks that the namespace is non-empty and every segment is
// non-empty and free of the "/" separator.
func (n Namespace) Validate() error {
	if len(n) == 0 {
		return fmt.Errorf("%w: no segments", ErrInvalidNamespace)
	}
	for i, seg := range n {
		if seg == "" {
			return fmt.Errorf("%w: segment %d is empty", ErrInvalidNamespace, i)
		}
		if strings.Contains(seg, "/") {
			return fmt.Errorf("%w: segment %q contains '/'", ErrInvalidNamespace, seg)
		}
	}
	return nil
}

// String joins segments with "/".
func (n Namespace) String() string {
	return strings.Join(n, "/")
}

// HasPrefix reports whether prefix is a leading subsequence of n.
// An empty prefix matches every namespace.
func (n Namespace) HasPrefix(prefix Namespace) bool {
	if len(prefix) > len(n) {
		return false
	}
	for i := range prefix {
		if n[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Equal reports whether both namespaces have the same segments.
func (n Namespace) Equal(other Namespace) bool {
	return len(n) == len(other) && n.HasPrefix(other)
}

// IsTemplate reports whether any segment needs resolving.
func (n Namespace) IsTemplate() bool {
	for _, seg := range n {
		if strings.Contains(seg, UserIDPlaceholder) {
			return true
		}
	}
	return false
}

// Resolve substitutes the user ID into template segments.
// Resolving a template without a user ID is an error.
func (n Namespace) Resolve(userID string) (Namespace, error) {
	out := make(Namespace, len(n))
	for i, seg := range n {
		if strings.Contains(seg, UserIDPlaceholder) {
			if userID == "" {
				return nil, fmt.Errorf("%w: %s requires a user ID", ErrInvalidNamespace, n)
			}
			seg = strings.ReplaceAll(seg, UserIDPlaceholder, userID)
		}
		out[i] = seg
	}
	return out, out.Validate()
}

// ParseNamespace splits a "/"-joined namespace.
func ParseNamespace(s string) Namespace {
	if s == "" {
		return nil
	}
	return Namespace(strings.Split(s, "/"))
}
