// internal/antidetect/fingerprint.go
package antidetect

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/valpere/CatalogHarvest/internal/browser"
)

// ScreenPreset is a common desktop display size.
type ScreenPreset struct {
	Width  int
	Height int
}

// WebGLProfile is a vendor/renderer pair reported through WebGL.
type WebGLProfile struct {
	Vendor   string
	Renderer string
}

// Fingerprinter draws a fresh, internally consistent FingerprintProfile for
// each session attempt. Locale and timezone stay fixed for the run.
type Fingerprinter struct {
	agents    *UserAgentRotator
	locale    string
	timezone  string
	screens   []ScreenPreset
	webgl     map[string][]WebGLProfile
	variation float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewFingerprinter creates a fingerprinter. agents may be empty to use the
// built-in pool; a nil rng is seeded from the clock.
func NewFingerprinter(agents []string, locale, timezone string, rng *rand.Rand) *Fingerprinter {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Fingerprinter{
		agents:    NewUserAgentRotator(agents, rand.New(rand.NewSource(rng.Int63()))),
		locale:    locale,
		timezone:  timezone,
		screens:   getCommonScreenSizes(),
		webgl:     getWebGLProfiles(),
		variation: 0.05, // 5% variation
		rng:       rng,
	}
}

// Next returns a new profile.
func (f *Fingerprinter) Next() browser.FingerprintProfile {
	ua := f.agents.GetRandom()
	platform := platformFor(ua)

	f.mu.Lock()
	defer f.mu.Unlock()

	screen := f.screens[f.rng.Intn(len(f.screens))]
	width, height := screen.Width, screen.Height
	if f.variation > 0 {
		// shrink only, so the viewport never exceeds the reported screen
		width -= f.rng.Intn(int(float64(width)*f.variation) + 1)
		height -= f.rng.Intn(int(float64(height)*f.variation) + 1)
	}

	gl := f.webgl[platform]
	if len(gl) == 0 {
		gl = f.webgl["Win32"]
	}
	webgl := gl[f.rng.Intn(len(gl))]

	locale := f.locale
	if locale == "" {
		locale = "en-US"
	}
	languages := []string{locale}
	if base, _, ok := strings.Cut(locale, "-"); ok {
		languages = append(languages, base)
	}

	return browser.FingerprintProfile{
		UserAgent:           ua,
		Platform:            platform,
		Width:               width,
		Height:              height,
		Locale:              locale,
		Timezone:            f.timezone,
		Languages:           languages,
		WebGLVendor:         webgl.Vendor,
		WebGLRenderer:       webgl.Renderer,
		HardwareConcurrency: []int{4, 8, 8, 12, 16}[f.rng.Intn(5)],
		DeviceMemory:        []int{4, 8, 8, 16}[f.rng.Intn(4)],
	}
}

// platformFor maps a user agent to the navigator.platform value a real
// browser with that agent reports.
func platformFor(ua string) string {
	switch {
	case strings.Contains(ua, "Macintosh"):
		return "MacIntel"
	case strings.Contains(ua, "Linux"):
		return "Linux x86_64"
	default:
		return "Win32"
	}
}

func getCommonScreenSizes() []ScreenPreset {
	return []ScreenPreset{
		{Width: 1920, Height: 1080},
		{Width: 1366, Height: 768},
		{Width: 1536, Height: 864},
		{Width: 1440, Height: 900},
		{Width: 1280, Height: 720},
		{Width: 2560, Height: 1440},
		{Width: 1600, Height: 900},
	}
}

func getWebGLProfiles() map[string][]WebGLProfile {
	return map[string][]WebGLProfile{
		"Win32": {
			{Vendor: "Google Inc. (Intel)", Renderer: "ANGLE (Intel, Intel(R) UHD Graphics 620 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
			{Vendor: "Google Inc. (NVIDIA)", Renderer: "ANGLE (NVIDIA, NVIDIA GeForce GTX 1660 Ti Direct3D11 vs_5_0 ps_5_0, D3D11)"},
			{Vendor: "Google Inc. (AMD)", Renderer: "ANGLE (AMD, AMD Radeon RX 580 Series Direct3D11 vs_5_0 ps_5_0, D3D11)"},
		},
		"MacIntel": {
			{Vendor: "Google Inc. (Apple)", Renderer: "ANGLE (Apple, Apple M1, OpenGL 4.1)"},
			{Vendor: "Google Inc. (Intel Inc.)", Renderer: "ANGLE (Intel Inc., Intel(R) Iris(TM) Plus Graphics 655, OpenGL 4.1)"},
		},
		"Linux x86_64": {
			{Vendor: "Google Inc. (Intel)", Renderer: "ANGLE (Intel, Mesa Intel(R) UHD Graphics 620 (KBL GT2), OpenGL 4.6)"},
			{Vendor: "Google Inc. (NVIDIA Corporation)", Renderer: "ANGLE (NVIDIA Corporation, NVIDIA GeForce GTX 1080/PCIe/SSE2, OpenGL 4.5)"},
		},
	}
}
