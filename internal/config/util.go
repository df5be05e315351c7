package config

import (
	"os"
	"strings"

	"github.com/caarlos0/env/v11"

	"sheetpipe/internal/failure"
)

// parse reads T from the process environment, with overrides given as
// "KEY=VALUE" pairs applied on top.
func parse[T any](overrides ...string) (*T, error) {
	c, err := env.ParseAsWithOptions[T](env.Options{
		Environment: environ(overrides),
	})
	if err != nil {
		return nil, failure.New(failure.KindConfig, "parse environment", err)
	}
	return &c, nil
}

// environ indexes os.Environ and then overrides by name. Entries without
// '=' are ignored; the last assignment of a name wins.
func environ(overrides []string) map[string]string {
	vars := make(map[string]string, len(overrides))
	for _, list := range [][]string{os.Environ(), overrides} {
		for _, kv := range list {
			if name, value, ok := strings.Cut(kv, "="); ok {
				vars[name] = value
			}
		}
	}
	return vars
}
