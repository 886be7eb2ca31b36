package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/mrz1836/chaincache/internal/remote"
	"github.com/mrz1836/chaincache/internal/store"
	ccerr "github.com/mrz1836/chaincache/pkg/errors"
)

// MaxSuggestionDistance is the largest edit distance for which a
// did-you-mean suggestion is offered.
const MaxSuggestionDistance = 2

// OutputFormats are the accepted output.default_format values.
//
//nolint:gochecknoglobals // fixed list of names
var OutputFormats = []string{"auto", "text", "json"}

// LogLevels are the accepted logging.level values.
//
//nolint:gochecknoglobals // fixed list of names
var LogLevels = []string{"off", "error", "warn", "info", "debug"}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Network.RPC == "" {
		errs = append(errs, remote.ErrRPCURLRequired)
	} else if err := remote.ValidateEndpoint(c.Network.RPC); err != nil {
		errs = append(errs, err)
	}
	if c.Network.Beacon != "" {
		if err := remote.ValidateEndpoint(c.Network.Beacon); err != nil {
			errs = append(errs, err)
		}
	}

	if err := checkName(store.ErrUnknownBackend, "backend", c.Cache.Backend, names(store.Backends())); err != nil {
		errs = append(errs, err)
	}
	if err := checkName(store.ErrUnknownFormat, "format", c.Cache.Format, names(store.Formats())); err != nil {
		errs = append(errs, err)
	}
	if err := checkName(ccerr.ErrConfigInvalid, "output.default_format", c.Output.DefaultFormat, OutputFormats); err != nil {
		errs = append(errs, err)
	}
	if err := checkName(ccerr.ErrConfigInvalid, "logging.level", c.Logging.Level, LogLevels); err != nil {
		errs = append(errs, err)
	}

	if c.Cache.MemoSize < 0 {
		errs = append(errs, invalidField("cache.memo_size", c.Cache.MemoSize, "must not be negative"))
	}
	if c.Network.RateLimit <= 0 {
		errs = append(errs, invalidField("network.rate_limit", c.Network.RateLimit, "must be positive"))
	}
	if c.Network.Burst <= 0 {
		errs = append(errs, invalidField("network.burst", c.Network.Burst, "must be positive"))
	}
	if c.Network.MaxAttempts < 1 {
		errs = append(errs, invalidField("network.max_attempts", c.Network.MaxAttempts, "must be at least 1"))
	}
	if c.Network.BaseDelay < 0 || c.Network.MaxDelay < c.Network.BaseDelay {
		errs = append(errs, invalidField("network.max_delay", c.Network.MaxDelay, "must be at least network.base_delay"))
	}
	if c.Network.RequestTimeout <= 0 {
		errs = append(errs, invalidField("network.request_timeout", c.Network.RequestTimeout, "must be positive"))
	}

	return errors.Join(errs...)
}

// Suggest returns the candidate closest to input, or "" when none is within
// MaxSuggestionDistance.
func Suggest(input string, candidates []string) string {
	input = strings.ToLower(strings.TrimSpace(input))
	best := ""
	bestDist := MaxSuggestionDistance + 1
	for _, c := range candidates {
		dist := levenshtein.ComputeDistance(input, c)
		if dist == 0 {
			return c
		}
		if dist < bestDist {
			bestDist = dist
			best = c
		}
	}
	return best
}

func checkName(base error, field, value string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	err := ccerr.WithDetails(base, map[string]string{
		"field":   field,
		"value":   value,
		"allowed": strings.Join(allowed, ", "),
	})
	if s := Suggest(value, allowed); s != "" {
		return ccerr.WithSuggestion(err, fmt.Sprintf("did you mean %q?", s))
	}
	return err
}

func invalidField(field string, value any, reason string) error {
	return ccerr.WithDetails(ccerr.ErrConfigInvalid, map[string]string{
		"field":  field,
		"value":  fmt.Sprint(value),
		"reason": reason,
	})
}

func names[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
