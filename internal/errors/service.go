// internal/errors/service.go - retry backoff and CLI error presentation
package errors

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// RetryConfig defines retry behavior
type RetryConfig struct {
	MaxRetries    int           `yaml:"max_retries" json:"max_retries"`
	BaseDelay     time.Duration `yaml:"base_delay" json:"base_delay"`
	BackoffFactor float64       `yaml:"backoff_factor" json:"backoff_factor"`
	MaxDelay      time.Duration `yaml:"max_delay" json:"max_delay"`
	// Jitter adds up to this fraction of the computed delay.
	Jitter float64 `yaml:"jitter" json:"jitter"`
}

// DefaultRetryConfig returns the source-level retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		BaseDelay:     5 * time.Second,
		BackoffFactor: 2.0,
		MaxDelay:      time.Minute,
		Jitter:        0.2,
	}
}

// Delay returns the wait before the given attempt (attempt 2 is the first
// retry). Delays increase monotonically until MaxDelay.
func (rc RetryConfig) Delay(attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 || rc.BaseDelay <= 0 {
		return 0
	}
	factor := rc.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	delay := float64(rc.BaseDelay) * pow(factor, float64(attempt-2))
	if rc.MaxDelay > 0 && delay > float64(rc.MaxDelay) {
		delay = float64(rc.MaxDelay)
	}
	if rc.Jitter > 0 && rng != nil {
		delay += delay * rc.Jitter * rng.Float64()
	}
	return time.Duration(delay)
}

// Service converts classified errors into user-facing CLI output.
type Service struct {
	showTechnical bool
}

// NewService creates a new error presentation service
func NewService() *Service {
	return &Service{}
}

// WithVerbose returns a copy that also prints technical details.
func (s *Service) WithVerbose(verbose bool) *Service {
	return &Service{showTechnical: verbose}
}

// GetUserFriendlyError maps an error to a title, a message and suggestions.
func (s *Service) GetUserFriendlyError(err error) (title, message string, suggestions []string) {
	if err == nil {
		return "", "", nil
	}

	switch KindOf(err) {
	case KindFatal:
		return "Browser Failure",
			"The headless browser could not be started, so no source could be crawled.",
			[]string{
				"Check that Chrome or Chromium is installed and on PATH",
				"Set browser.exec_path in the configuration",
				"In containers, make sure /dev/shm is large enough",
			}
	case KindConfig:
		return "Configuration Error",
			"The pipeline configuration is invalid.",
			[]string{
				"Run 'catalogharvest validate <config.yaml>' for details",
				"Compare with 'catalogharvest template'",
			}
	case KindOutput:
		return "Output Error",
			"Distribution files could not be written.",
			[]string{
				"Check that the output directory is writable",
				"Check free disk space",
			}
	case KindExhausted:
		return "Source Failed",
			"A source returned no items after its whole retry budget.",
			[]string{"Inspect the source's selectors and challenge behaviour"}
	case KindTransient:
		return "Network Error",
			"A page could not be loaded.",
			[]string{"Retry later; the site may be throttling or challenging requests"}
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "context canceled") || strings.Contains(errStr, "interrupt") {
		return "Interrupted", "The run was cancelled before it finished.", nil
	}
	return "Operation Failed", "An unexpected error occurred.", []string{"Re-run with -v for technical details"}
}

// GetExitCode returns the process exit code for err.
func (s *Service) GetExitCode(err error) int {
	if err == nil {
		return 0
	}

	switch KindOf(err) {
	case KindConfig:
		return 2
	case KindTransient:
		return 3
	case KindParse:
		return 4
	case KindOutput:
		return 5
	case KindFatal:
		return 9
	default:
		return 1
	}
}

// FormatErrorForCLI formats error for command-line display
func (s *Service) FormatErrorForCLI(err error) string {
	title, message, suggestions := s.GetUserFriendlyError(err)

	output := fmt.Sprintf("Error: %s\n%s\n", title, message)

	if s.showTechnical {
		output += fmt.Sprintf("\nTechnical details: %s\n", err.Error())
	}

	if len(suggestions) > 0 {
		output += "\nSuggestions:\n"
		for _, suggestion := range suggestions {
			output += fmt.Sprintf("  - %s\n", suggestion)
		}
	}

	return output
}

// Helper function for power calculation
func pow(base, exp float64) float64 {
	result := 1.0
	for i := 0; i < int(exp); i++ {
		result *= base
	}
	return result
}
