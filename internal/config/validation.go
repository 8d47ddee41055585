// internal/config/validation.go - validation with detailed error messages
package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ValidationError represents a detailed validation error
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func (ve ValidationError) Error() string {
	if ve.Value != "" {
		return fmt.Sprintf("%s: %s (got %q)", ve.Field, ve.Message, ve.Value)
	}
	return fmt.Sprintf("%s: %s", ve.Field, ve.Message)
}

// ValidationErrors aggregates every problem found in one pass.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	parts := make([]string, len(ve))
	for i, e := range ve {
		parts[i] = e.Error()
	}
	return fmt.Sprintf("%d validation error(s): %s", len(ve), strings.Join(parts, "; "))
}

// Validate checks the whole configuration and returns ValidationErrors.
func (pc *PipelineConfig) Validate() error {
	var errs ValidationErrors

	if len(pc.Sources) == 0 {
		errs = append(errs, ValidationError{Field: "sources", Message: "at least one source is required"})
	}

	seen := make(map[string]bool)
	for i, s := range pc.Sources {
		prefix := fmt.Sprintf("sources[%d]", i)
		name := strings.ToLower(strings.TrimSpace(s.Name))
		if seen[name] && name != "" {
			errs = append(errs, ValidationError{Field: prefix + ".name", Value: s.Name, Message: "duplicate source name"})
		}
		seen[name] = true
		errs = append(errs, validateSource(prefix, s)...)
	}

	if pc.Crawl.PacingMax < pc.Crawl.PacingMin {
		errs = append(errs, ValidationError{Field: "crawl.pacing_max", Message: "must not be smaller than pacing_min"})
	}
	if pc.Humanize.MaxMoves < pc.Humanize.MinMoves {
		errs = append(errs, ValidationError{Field: "humanize.max_moves", Message: "must not be smaller than min_moves"})
	}
	if pc.Enrichment.MaxDelay < pc.Enrichment.MinDelay {
		errs = append(errs, ValidationError{Field: "enrichment.max_delay", Message: "must not be smaller than min_delay"})
	}
	if pc.Enrichment.Enabled && pc.Enrichment.BaseURL != "" {
		if u, err := url.Parse(pc.Enrichment.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{Field: "enrichment.base_url", Value: pc.Enrichment.BaseURL, Message: "must be an absolute URL"})
		}
	}

	for i, s := range pc.Sinks {
		errs = append(errs, validateSink(fmt.Sprintf("sinks[%d]", i), s)...)
	}
	errs = append(errs, validateProxy(pc.Proxy)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateSource(prefix string, s SourceConfig) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(s.Name) == "" {
		errs = append(errs, ValidationError{Field: prefix + ".name", Message: "source name is required"})
	}
	if !s.Category.Valid() {
		errs = append(errs, ValidationError{Field: prefix + ".category", Value: string(s.Category), Message: "must be one of drama, anime, film, bollywood"})
	}
	if len(s.URLs) == 0 {
		errs = append(errs, ValidationError{Field: prefix + ".urls", Message: "at least one entry URL is required"})
	}
	for j, raw := range s.URLs {
		// templated entry URLs contain braces that url.Parse accepts in paths
		u, err := url.Parse(strings.NewReplacer("{page}", "1", "{offset}", "0").Replace(raw))
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("%s.urls[%d]", prefix, j), Value: raw, Message: "must be an absolute URL"})
		}
	}
	if s.Selectors.Item == "" {
		errs = append(errs, ValidationError{Field: prefix + ".selectors.item", Message: "item selector is required"})
	}
	if s.MinItems < 0 {
		errs = append(errs, ValidationError{Field: prefix + ".min_items", Message: "cannot be negative"})
	}
	if s.RetryCount < 1 {
		errs = append(errs, ValidationError{Field: prefix + ".retry_count", Message: "must be at least 1"})
	}
	for j, rule := range s.TitleTransforms {
		field := fmt.Sprintf("%s.title_transforms[%d]", prefix, j)
		switch rule.Type {
		case "trim", "normalize_spaces", "lowercase", "uppercase", "remove_html":
		case "strip_prefix", "strip_suffix":
			if rule.Pattern == "" {
				errs = append(errs, ValidationError{Field: field + ".pattern", Message: "pattern is required"})
			}
		case "regex":
			if _, err := regexp.Compile(rule.Pattern); err != nil || rule.Pattern == "" {
				errs = append(errs, ValidationError{Field: field + ".pattern", Value: rule.Pattern, Message: "must be a valid regular expression"})
			}
		default:
			errs = append(errs, ValidationError{Field: field + ".type", Value: rule.Type, Message: "unknown transform"})
		}
	}
	if p := s.Pagination; p != nil {
		if !strings.Contains(p.Template, "{page}") && !strings.Contains(p.Template, "{offset}") {
			errs = append(errs, ValidationError{Field: prefix + ".pagination.template", Value: p.Template, Message: "must contain {page} or {offset}"})
		}
		if p.MaxPages < 0 {
			errs = append(errs, ValidationError{Field: prefix + ".pagination.max_pages", Message: "cannot be negative"})
		}
	}
	return errs
}

func validateSink(prefix string, s SinkConfig) []ValidationError {
	var errs []ValidationError
	switch s.Type {
	case "mongodb":
		if s.URI == "" {
			errs = append(errs, ValidationError{Field: prefix + ".uri", Message: "MongoDB URI is required"})
		}
	case "sql":
		switch s.Driver {
		case "sqlite3", "postgres", "mysql":
		default:
			errs = append(errs, ValidationError{Field: prefix + ".driver", Value: s.Driver, Message: "must be sqlite3, postgres or mysql"})
		}
		if s.DSN == "" {
			errs = append(errs, ValidationError{Field: prefix + ".dsn", Message: "DSN is required"})
		}
		if !isIdentifier(s.Table) {
			errs = append(errs, ValidationError{Field: prefix + ".table", Value: s.Table, Message: "must be a plain identifier"})
		}
	default:
		errs = append(errs, ValidationError{Field: prefix + ".type", Value: s.Type, Message: "must be mongodb or sql"})
	}
	return errs
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func validateProxy(p ProxyConfig) []ValidationError {
	if !p.Enabled {
		return nil
	}
	var errs []ValidationError
	switch p.Rotation {
	case "round_robin", "random", "weighted":
	default:
		errs = append(errs, ValidationError{Field: "proxy.rotation", Value: p.Rotation, Message: "must be one of round_robin, random, weighted"})
	}
	if p.FailureThreshold < 1 {
		errs = append(errs, ValidationError{Field: "proxy.failure_threshold", Message: "must be at least 1"})
	}

	enabled := 0
	names := make(map[string]bool)
	for i, pr := range p.Providers {
		prefix := fmt.Sprintf("proxy.providers[%d]", i)
		if pr.Name == "" {
			errs = append(errs, ValidationError{Field: prefix + ".name", Message: "provider name is required"})
		} else if names[pr.Name] {
			errs = append(errs, ValidationError{Field: prefix + ".name", Value: pr.Name, Message: "duplicate provider name"})
		}
		names[pr.Name] = true
		switch pr.Type {
		case "http", "https", "socks5":
		default:
			errs = append(errs, ValidationError{Field: prefix + ".type", Value: pr.Type, Message: "must be one of http, https, socks5"})
		}
		if pr.Host == "" {
			errs = append(errs, ValidationError{Field: prefix + ".host", Message: "host is required"})
		}
		if pr.Port < 1 || pr.Port > 65535 {
			errs = append(errs, ValidationError{Field: prefix + ".port", Value: fmt.Sprint(pr.Port), Message: "must be between 1 and 65535"})
		}
		if pr.Type == "socks5" && pr.Username != "" {
			errs = append(errs, ValidationError{Field: prefix + ".username", Message: "the browser cannot authenticate to socks5 proxies"})
		}
		if !pr.Disabled {
			enabled++
		}
	}
	if enabled == 0 {
		errs = append(errs, ValidationError{Field: "proxy.providers", Message: "at least one enabled provider is required"})
	}
	return errs
}
