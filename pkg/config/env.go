package config

import (
	"os"

	"github.com/ajitpratap0/nebula-table/pkg/errors"
)

// CheckEnv resolves a credential. A non-empty value wins; otherwise the
// environment variable env is read. When neither is set, a required
// credential fails and an optional one resolves to "".
func CheckEnv(env, value string, optional bool) (string, error) {
	if value != "" {
		return value, nil
	}
	if v, ok := os.LookupEnv(env); ok && v != "" {
		return v, nil
	}
	if optional {
		return "", nil
	}
	return "", errors.Newf(errors.ErrorTypeConfig,
		"no %s found; store it as an environment variable or pass it as an argument", env).
		WithDetail("env", env)
}
