// internal/antidetect/antidetect.go

// Package antidetect holds the stealth measures that run inside a browser
// session: fingerprint profiles, interstitial challenge handling and
// human-like pointer and scroll simulation.
package antidetect

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// UserAgentRotator rotates user agents
type UserAgentRotator struct {
	agents []string
	mu     sync.Mutex
	index  int
	rng    *rand.Rand
}

// NewUserAgentRotator creates a new user agent rotator. A nil rng is seeded
// from the clock.
func NewUserAgentRotator(agents []string, rng *rand.Rand) *UserAgentRotator {
	if len(agents) == 0 {
		agents = getDefaultUserAgents()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &UserAgentRotator{
		agents: agents,
		rng:    rng,
	}
}

// GetNext returns the next user agent
func (r *UserAgentRotator) GetNext() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent := r.agents[r.index]
	r.index = (r.index + 1) % len(r.agents)
	return agent
}

// GetRandom returns a random user agent
func (r *UserAgentRotator) GetRandom() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.agents[r.rng.Intn(len(r.agents))]
}

// Len returns the pool size.
func (r *UserAgentRotator) Len() int {
	return len(r.agents)
}

// CaptchaDetector detects CAPTCHAs and interstitials in HTML content
type CaptchaDetector struct{}

// CaptchaType represents the type of CAPTCHA
type CaptchaType int

const (
	NoCaptcha CaptchaType = iota
	RecaptchaV2
	RecaptchaV3
	HCaptcha
	FunCaptcha
	Turnstile
	CloudflareInterstitial
	DDoSGuard
)

func (c CaptchaType) String() string {
	switch c {
	case RecaptchaV2:
		return "recaptcha_v2"
	case RecaptchaV3:
		return "recaptcha_v3"
	case HCaptcha:
		return "hcaptcha"
	case FunCaptcha:
		return "funcaptcha"
	case Turnstile:
		return "turnstile"
	case CloudflareInterstitial:
		return "cloudflare"
	case DDoSGuard:
		return "ddos_guard"
	default:
		return "none"
	}
}

// NewCaptchaDetector creates a new CAPTCHA detector
func NewCaptchaDetector() *CaptchaDetector {
	return &CaptchaDetector{}
}

// Detect detects CAPTCHA type in HTML content
func (cd *CaptchaDetector) Detect(html string) (CaptchaType, bool) {
	html = strings.ToLower(html)

	if strings.Contains(html, "g-recaptcha") {
		return RecaptchaV2, true
	}

	if strings.Contains(html, "recaptcha/api.js?render=") {
		return RecaptchaV3, true
	}

	if strings.Contains(html, "h-captcha") {
		return HCaptcha, true
	}

	if strings.Contains(html, "funcaptcha") || strings.Contains(html, "arkoselabs") {
		return FunCaptcha, true
	}

	if strings.Contains(html, "cf-turnstile") || strings.Contains(html, "challenges.cloudflare.com/turnstile") {
		return Turnstile, true
	}

	if strings.Contains(html, "cf-browser-verification") || strings.Contains(html, "cf-challenge") ||
		strings.Contains(html, "challenge-platform") {
		return CloudflareInterstitial, true
	}

	if strings.Contains(html, "ddos-guard") {
		return DDoSGuard, true
	}

	return NoCaptcha, false
}

// Helper functions
func getDefaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
	}
}
