package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"ordersetl/internal/datasource/httpds"
	"ordersetl/internal/storage"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Config.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "transform.winsor_upper"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate performs static validation of c. It does not touch the
// filesystem; missing input files are reported by the run itself.
//
// Storage kinds are checked against the backends registered with the
// storage package, so callers must link them in (storage/all) first.
func Validate(c Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(c.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty",
		})
	}

	issues = append(issues, validatePaths(c)...)
	issues = append(issues, validateTransform(c.Transform)...)
	issues = append(issues, validateStorage(c.Storage)...)
	issues = append(issues, validateMetrics(c.Metrics)...)
	return issues
}

func validatePaths(c Config) []Issue {
	var issues []Issue
	paths := []struct {
		path, value string
	}{
		{"inputs.orders", c.Inputs.Orders},
		{"inputs.users", c.Inputs.Users},
		{"outputs.orders_clean", c.Outputs.OrdersClean},
		{"outputs.users", c.Outputs.Users},
		{"outputs.analytics", c.Outputs.Analytics},
		{"outputs.run_meta", c.Outputs.RunMeta},
	}
	seen := map[string]string{}
	for _, p := range paths {
		if strings.TrimSpace(p.value) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     p.path,
				Message:  "path must not be empty",
			})
			continue
		}
		if !strings.HasPrefix(p.path, "outputs.") {
			continue
		}
		if httpds.IsURL(p.value) {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     p.path,
				Message:  "outputs must be local paths",
			})
			continue
		}
		clean := filepath.Clean(c.Path(p.value))
		if prev, ok := seen[clean]; ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     p.path,
				Message:  fmt.Sprintf("path %q is already used by %s", p.value, prev),
			})
			continue
		}
		seen[clean] = p.path
	}
	return issues
}

func validateTransform(t Transform) []Issue {
	var issues []Issue
	if t.WinsorLower < 0 || t.WinsorUpper > 1 || t.WinsorLower >= t.WinsorUpper {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "transform.winsor_lower",
			Message: fmt.Sprintf("winsor bounds must satisfy 0 <= lower < upper <= 1 (got %g, %g)",
				t.WinsorLower, t.WinsorUpper),
		})
	}
	if len(t.StatusMap) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "transform.status_map",
			Message:  "status_map is empty; status_clean will only be normalized",
		})
	}
	if strings.TrimSpace(t.MatchColumn) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "transform.match_column",
			Message:  "match_column is empty; join match rate will not be reported",
		})
	}
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue
	if s.BatchSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.batch_size",
			Message:  "batch_size must be >= 0",
		})
	}
	if s.Kind == "" {
		return issues
	}

	kinds := storage.ListKinds()
	if !slices.Contains(kinds, s.Kind) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unsupported storage kind %q (known: %s)", s.Kind, strings.Join(kinds, ", ")),
		})
	}
	if strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.dsn",
			Message:  "dsn must be set when storage.kind is set",
		})
	}
	if strings.TrimSpace(s.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.table",
			Message:  "table must be set when storage.kind is set",
		})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	switch strings.ToLower(m.Backend) {
	case "", "none":
		return nil
	case "pushgateway", "prometheus":
		if m.PushgatewayURL == "" {
			return []Issue{{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "pushgateway_url is required for the pushgateway backend",
			}}
		}
	case "datadog":
		if m.DatadogAddr == "" {
			return []Issue{{
				Severity: SeverityError,
				Path:     "metrics.datadog_addr",
				Message:  "datadog_addr is required for the datadog backend",
			}}
		}
	default:
		return []Issue{{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q", m.Backend),
		}}
	}
	return nil
}
