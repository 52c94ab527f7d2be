package config

import (
	"os"
	"strings"
)

// Environment is the deployment the process runs in.
type Environment string

const (
	Development Environment = "development"
	Test        Environment = "test"
	CI          Environment = "ci"
	Production  Environment = "production"
)

// GetEnvironment reads ENV. CI=true wins over ENV so pipelines never pick up
// developer secrets by accident.
func GetEnvironment() Environment {
	if os.Getenv("CI") == "true" {
		return CI
	}
	return ParseEnvironment(os.Getenv("ENV"))
}

// ParseEnvironment maps an ENV value to an Environment. Anything unrecognised is Development.
func ParseEnvironment(s string) Environment {
	env := Environment(strings.ToLower(strings.TrimSpace(s)))
	switch env {
	case Production, Test, CI:
		return env
	}
	return Development
}

// Automated reports whether the process runs under a test harness.
func (e Environment) Automated() bool {
	return e == Test || e == CI
}

// IsProduction reports whether ENV selects production.
func IsProduction() bool {
	return GetEnvironment() == Production
}
