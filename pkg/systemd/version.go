package systemd

import (
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// parseVersion splits `systemctl --version`-style output into its
// first non-empty line (the version) and any remaining non-empty
// lines (feature flags), trimming whitespace throughout.
func parseVersion(raw string) (string, []string) {
	lines := strings.Split(raw, "\n")
	var version string
	var extra []string
	seenVersion := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !seenVersion {
			version = trimmed
			seenVersion = true
			extra = []string{}
			continue
		}
		extra = append(extra, trimmed)
	}
	return version, extra
}

// Version runs `systemctl --version` and returns the parsed result.
func Version() (string, []string, error) {
	out, err := exec.Command("systemctl", "--version").Output()
	if err != nil {
		return "", nil, err
	}
	v, extra := parseVersion(string(out))
	return v, extra, nil
}

// parseSystemdUnitUptime parses the timestamp format systemd prints for
// `ActiveEnterTimestamp`, e.g. "Wed 2024-02-28 01:29:39 UTC", returning
// how long ago that was.
func parseSystemdUnitUptime(s string) (time.Duration, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(s), "\x0a")
	t, err := time.Parse("Mon 2006-01-02 15:04:05 MST", trimmed)
	if err != nil {
		return 0, fmt.Errorf("could not parse systemd timestamp %q: %w", s, err)
	}
	return time.Since(t), nil
}
