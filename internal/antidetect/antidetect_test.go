// internal/antidetect/antidetect_test.go
package antidetect

import (
	"math/rand"
	"testing"
)

func TestUserAgentRotator(t *testing.T) {
	userAgents := []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)",
	}

	rotator := NewUserAgentRotator(userAgents, rand.New(rand.NewSource(1)))

	if got := rotator.GetNext(); got != userAgents[0] {
		t.Errorf("expected first agent, got %q", got)
	}
	if got := rotator.GetNext(); got != userAgents[1] {
		t.Errorf("expected second agent, got %q", got)
	}
	if got := rotator.GetNext(); got != userAgents[0] {
		t.Errorf("expected rotation to wrap, got %q", got)
	}

	if NewUserAgentRotator(nil, nil).Len() == 0 {
		t.Error("default pool should not be empty")
	}
}

func TestCaptchaDetector(t *testing.T) {
	detector := NewCaptchaDetector()

	tests := []struct {
		html string
		want CaptchaType
	}{
		{`<div class="g-recaptcha" data-sitekey="x"></div>`, RecaptchaV2},
		{`<script src="https://www.google.com/recaptcha/api.js?render=abc"></script>`, RecaptchaV3},
		{`<div class="h-captcha"></div>`, HCaptcha},
		{`<div class="cf-turnstile"></div>`, Turnstile},
		{`<div id="cf-challenge-running"></div>`, CloudflareInterstitial},
		{`<title>DDoS-Guard</title>`, DDoSGuard},
		{`<ul class="items"><li>Show</li></ul>`, NoCaptcha},
	}

	for _, tt := range tests {
		got, found := detector.Detect(tt.html)
		if got != tt.want {
			t.Errorf("Detect(%q) = %s, want %s", tt.html, got, tt.want)
		}
		if found != (tt.want != NoCaptcha) {
			t.Errorf("Detect(%q) found = %v", tt.html, found)
		}
	}
}
