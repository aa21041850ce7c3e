// Package validate holds the fixed-contract input predicates for family
// member submissions. Both are pure functions; callers decide how a failure
// is reported.
package validate

import "regexp"

// phoneRe matches a 10-digit Indian mobile number, optionally prefixed with
// the +91 country code. The first subscriber digit must be 6, 7, 8, or 9.
var phoneRe = regexp.MustCompile(`^(\+91)?[6-9][0-9]{9}$`)

// gmailRe matches a syntactically plausible address restricted to the
// gmail.com domain. Local part rules follow common provider constraints
// (letters, digits, dots, plus tags, underscores, hyphens).
var gmailRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._%+\-]*@gmail\.com$`)

// IsValidPhone reports whether s is an acceptable Indian mobile number.
func IsValidPhone(s string) bool {
	return phoneRe.MatchString(s)
}

// IsValidGmail reports whether s is an acceptable gmail.com address.
func IsValidGmail(s string) bool {
	return gmailRe.MatchString(s)
}
