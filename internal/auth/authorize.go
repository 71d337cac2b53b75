package auth

import "strings"

// RoleAllowed reports whether role is a member of the permitted set.
// Comparison is case-insensitive; an empty permitted set allows nothing.
func RoleAllowed(role string, permitted ...string) bool {
	role = strings.TrimSpace(strings.ToLower(role))
	if role == "" {
		return false
	}
	for _, p := range permitted {
		if role == strings.TrimSpace(strings.ToLower(p)) {
			return true
		}
	}
	return false
}
