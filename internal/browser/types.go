// internal/browser/types.go

// Package browser owns the single headless Chrome process and hands out
// isolated per-attempt sessions that implement Page.
package browser

import (
	"context"
	"time"
)

// Page is the subset of tab control the challenge handler, humanizer and
// orchestrator need. Session implements it on top of chromedp; tests use
// fakes.
type Page interface {
	// Navigate loads url and waits for the document body
	Navigate(ctx context.Context, url string) error

	// HTML returns the current serialized document
	HTML(ctx context.Context) (string, error)

	// Title returns document.title
	Title(ctx context.Context) (string, error)

	// Exists reports whether selector matches at least one node right now
	Exists(ctx context.Context, selector string) (bool, error)

	// WaitReady waits until selector is present or timeout elapses
	WaitReady(ctx context.Context, selector string, timeout time.Duration) error

	// Evaluate runs a script and decodes its result into res (may be nil)
	Evaluate(ctx context.Context, script string, res interface{}) error

	MouseMove(ctx context.Context, x, y float64) error
	MouseClick(ctx context.Context, x, y float64) error

	// Scroll scrolls vertically by dy pixels and reports whether the
	// viewport bottom reached the end of the document
	Scroll(ctx context.Context, dy int) (bool, error)

	// ClickText clicks the first interactive element whose visible text
	// contains one of labels, case-insensitively
	ClickText(ctx context.Context, labels []string) (bool, error)

	// Viewport returns the emulated viewport size
	Viewport() (width, height int)
}

// FingerprintProfile is the identity one session presents. A new profile is
// drawn for every attempt so consecutive sessions do not correlate.
type FingerprintProfile struct {
	UserAgent           string
	Platform            string
	Width               int
	Height              int
	Locale              string
	Timezone            string
	Languages           []string
	WebGLVendor         string
	WebGLRenderer       string
	HardwareConcurrency int
	DeviceMemory        int

	// Proxy routes this session's browser context; nil uses the process
	// default
	Proxy *ProxyEndpoint
}

// ProxyEndpoint is the egress of one session.
type ProxyEndpoint struct {
	// Name identifies the pool entry the endpoint came from
	Name string
	// Server is the Chrome proxy string, e.g. http://10.0.0.1:3128
	Server   string
	Username string
	Password string
}

// DefaultProfile is used when a caller supplies an empty profile.
func DefaultProfile() FingerprintProfile {
	return FingerprintProfile{
		UserAgent:           "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		Platform:            "Win32",
		Width:               1920,
		Height:              1080,
		Locale:              "en-US",
		Timezone:            "America/New_York",
		Languages:           []string{"en-US", "en"},
		WebGLVendor:         "Google Inc. (Intel)",
		WebGLRenderer:       "ANGLE (Intel, Intel(R) UHD Graphics 620 Direct3D11 vs_5_0 ps_5_0, D3D11)",
		HardwareConcurrency: 8,
		DeviceMemory:        8,
	}
}

// withDefaults fills zero fields from DefaultProfile.
func (p FingerprintProfile) withDefaults() FingerprintProfile {
	d := DefaultProfile()
	if p.UserAgent == "" {
		p.UserAgent = d.UserAgent
	}
	if p.Platform == "" {
		p.Platform = d.Platform
	}
	if p.Width <= 0 || p.Height <= 0 {
		p.Width, p.Height = d.Width, d.Height
	}
	if p.Locale == "" {
		p.Locale = d.Locale
	}
	if p.Timezone == "" {
		p.Timezone = d.Timezone
	}
	if len(p.Languages) == 0 {
		p.Languages = []string{p.Locale}
	}
	if p.WebGLVendor == "" {
		p.WebGLVendor, p.WebGLRenderer = d.WebGLVendor, d.WebGLRenderer
	}
	if p.HardwareConcurrency <= 0 {
		p.HardwareConcurrency = d.HardwareConcurrency
	}
	if p.DeviceMemory <= 0 {
		p.DeviceMemory = d.DeviceMemory
	}
	return p
}

// BrowserStats contains browser automation statistics
type BrowserStats struct {
	SessionsOpened   int `json:"sessions_opened"`
	PagesLoaded      int `json:"pages_loaded"`
	Errors           int `json:"errors"`
	TimeoutsOccurred int `json:"timeouts_occurred"`
}
