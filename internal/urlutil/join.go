package urlutil

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// JoinPath joins URL paths, handling trailing and leading slashes correctly
func JoinPath(base string, paths ...string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	allPaths := append([]string{u.Path}, paths...)
	u.Path = path.Join(allPaths...)

	// Preserve trailing slash if the last path component had one
	if len(paths) > 0 && strings.HasSuffix(paths[len(paths)-1], "/") {
		u.Path += "/"
	}

	return u.String(), nil
}

// Origin reduces an absolute http(s) URL to scheme://host[:port], the form
// browsers send in the Origin header.
func Origin(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", raw)
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), nil
}

// CallbackURL returns the redirect URI registered with the provider for a
// frontend served at frontendURL.
func CallbackURL(frontendURL string) (string, error) {
	origin, err := Origin(frontendURL)
	if err != nil {
		return "", err
	}
	u, _ := url.Parse(strings.TrimSpace(frontendURL))
	return JoinPath(origin, u.Path, "callback")
}
