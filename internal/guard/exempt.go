package guard

import (
	"regexp"
	"strings"
)

var staticAsset = regexp.MustCompile(`\.(css|js|html|png|jpg|ico|favicon)$`)

// benign browser and extension requests
var browserFragments = []string{"current-url", ".identity", "favicon"}

// IsExempt reports whether path skips rate limiting. Signature checks still
// apply to exempt paths.
func IsExempt(path string) bool {
	if staticAsset.MatchString(path) {
		return true
	}
	for _, frag := range browserFragments {
		if strings.Contains(path, frag) {
			return true
		}
	}
	return false
}

// LimitFor picks the rate limit category for a path.
func LimitFor(path string) LimitCategory {
	if strings.Contains(path, "/login") {
		return LimitLogin
	}
	return LimitGeneral
}
