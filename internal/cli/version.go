package cli

import (
	"fmt"
	"os/exec"
	"regexp"

	"golang.org/x/mod/semver"
)

// claudeStreamJSONMinVersion is the oldest claude CLI release whose
// --output-format stream-json output matches the parser in this package.
const claudeStreamJSONMinVersion = "v1.0.0"

var versionPattern = regexp.MustCompile(`\d+\.\d+\.\d+(?:-[0-9A-Za-z.-]+)?`)

// ProbeVersion runs `<backend> --version` and returns the reported
// version in canonical semver form ("v1.2.3"). Backends that print no
// parseable version yield an error; callers treat that as
// version-unknown, not as backend-unavailable.
func ProbeVersion(backend Backend) (string, error) {
	out, err := exec.Command(string(backend), "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("cli: probe %s --version: %w", backend, err)
	}
	return parseVersionOutput(string(out))
}

func parseVersionOutput(out string) (string, error) {
	m := versionPattern.FindString(out)
	if m == "" {
		return "", fmt.Errorf("cli: no semver token in version output %q", truncate(out, 100))
	}
	v := "v" + m
	if !semver.IsValid(v) {
		return "", fmt.Errorf("cli: invalid version %q", v)
	}
	return semver.Canonical(v), nil
}

// SupportsStreamJSON reports whether backend at version can be asked for
// NDJSON streaming output. An empty version means the probe failed; the
// backend is then assumed current, since refusing streaming on a probe
// hiccup would silently degrade every session.
func SupportsStreamJSON(backend Backend, version string) bool {
	if backend != "claude" {
		return false
	}
	if version == "" {
		return true
	}
	return semver.Compare(version, claudeStreamJSONMinVersion) >= 0
}
