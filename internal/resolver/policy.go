package resolver

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// splitPin separates an optional "@version" suffix from a load path. The
// leading "@" of a package path is not a pin: "@stdlib/resistor@v1.2.0"
// splits into "@stdlib/resistor" and "v1.2.0".
func splitPin(loadPath string) (raw, pin string) {
	at := strings.LastIndex(loadPath, "@")
	if at <= 0 {
		return loadPath, ""
	}
	return loadPath[:at], loadPath[at+1:]
}

// checkPin applies the dependency-pin policy: a pinned dependency must name
// a valid semantic version, otherwise the load carries an unstable-pin
// advisory. Unpinned loads are fine; pinning to branches, bare revisions,
// or pre-release channels is what the advisory flags.
func checkPin(loadPath, pin string) string {
	if pin == "" {
		return ""
	}
	v := pin
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return fmt.Sprintf("unstable dependency pin %q in load of %q", pin, loadPath)
	}
	if semver.Prerelease(v) != "" {
		return fmt.Sprintf("pre-release dependency pin %q in load of %q", pin, loadPath)
	}
	return ""
}
