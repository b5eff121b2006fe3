package common

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeClusterHost reduces a configured cluster address to host[:port].
// Operators tend to paste full URLs, so any scheme and trailing slashes are
// dropped; the relay always composes https URLs itself.
func NormalizeClusterHost(raw string) (string, error) {

	host := strings.TrimSpace(raw)

	if len(host) == 0 {
		return "", fmt.Errorf("cluster host is empty")
	}

	if strings.Contains(host, "://") {
		parsed, err := url.Parse(host)
		if err != nil {
			return "", fmt.Errorf("invalid cluster host %q: %w", raw, err)
		}
		if len(strings.Trim(parsed.Path, "/")) > 0 {
			return "", fmt.Errorf("cluster host %q must not include a path", raw)
		}
		host = parsed.Host
	}

	host = strings.TrimRight(host, "/")

	if len(host) == 0 || strings.ContainsAny(host, "/ ?#") {
		return "", fmt.Errorf("invalid cluster host %q", raw)
	}

	return host, nil
}

// IsInsecureScheme reports whether the configured address explicitly asked
// for plain http, which the relay refuses to honour.
func IsInsecureScheme(raw string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(raw)), "http://")
}
