package envutil

import (
	"os"
	"strings"
)

// Environment names a deployment mode such as "production" or "development".
type Environment string

const (
	Production  Environment = "production"
	Development Environment = "development"
	Test        Environment = "test"
)

// Parse normalizes an environment name. An empty name means Development;
// any other unrecognised name, such as "staging", maps to Production so that
// Secure cookies and HSTS stay on and local origins stay off.
func Parse(s string) Environment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "development", "":
		return Development
	case "test":
		return Test
	default:
		return Production
	}
}

// IsProduction reports whether cookies must be Secure and HSTS sent.
func (e Environment) IsProduction() bool {
	return e == Production
}

// IsDev reports whether relaxed local settings, like extra CORS origins, apply.
func (e Environment) IsDev() bool {
	return e == Development
}

// FromEnv reads NODE_ENV, falling back to SONGIFY_ENV.
func FromEnv() Environment {
	if v := os.Getenv("NODE_ENV"); v != "" {
		return Parse(v)
	}
	return Parse(os.Getenv("SONGIFY_ENV"))
}
