// internal/antidetect/challenge.go
package antidetect

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/valpere/CatalogHarvest/internal/browser"
	"github.com/valpere/CatalogHarvest/internal/config"
	"github.com/valpere/CatalogHarvest/internal/utils"
)

// challengeSelectors match DOM nodes that only exist on interstitials.
var challengeSelectors = []string{
	"#challenge-form",
	"#challenge-running",
	"#cf-challenge-running",
	".cf-browser-verification",
	"#challenge-stage",
	"#cf-please-wait",
	`iframe[src*="challenges"]`,
	".g-recaptcha",
	".h-captcha",
	".cf-turnstile",
	"#ddos-guard",
}

// challengeTitles are lower-case substrings of interstitial page titles.
var challengeTitles = []string{
	"just a moment",
	"attention required",
	"checking your browser",
	"verify you are human",
	"access denied",
	"ddos-guard",
	"please wait",
}

// PassResult reports how a page fared against an interstitial.
type PassResult struct {
	Passed   bool
	WaitedMs int64
	// Detected is true when a challenge marker was seen at any point
	Detected bool
	// Clicked is true when a verification affordance was clicked
	Clicked bool
	Vendor  CaptchaType
}

// ChallengeHandler waits out or clicks through anti-bot interstitials.
// It is best effort and never returns an error: the caller decides what an
// unpassed page means.
type ChallengeHandler struct {
	cfg      config.ChallengeConfig
	sleep    utils.Sleeper
	detector *CaptchaDetector
	logger   *zap.Logger
}

// NewChallengeHandler creates a handler. A nil sleep uses utils.Sleep.
func NewChallengeHandler(cfg config.ChallengeConfig, sleep utils.Sleeper, logger *zap.Logger) *ChallengeHandler {
	if sleep == nil {
		sleep = utils.Sleep
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if len(cfg.ClickLabels) == 0 {
		cfg.ClickLabels = []string{"continue", "verify", "human", "proceed"}
	}
	return &ChallengeHandler{
		cfg:      cfg,
		sleep:    sleep,
		detector: NewCaptchaDetector(),
		logger:   utils.OrNop(logger).Named("challenge"),
	}
}

// AwaitPassable polls for challenge markers until they clear or
// DetectTimeout elapses. A challenge still present at that point gets one
// extended wait, one click on a verification affordance, a post-click wait
// and a final poll.
func (h *ChallengeHandler) AwaitPassable(ctx context.Context, page browser.Page, src config.SourceConfig) PassResult {
	log := h.logger.With(zap.String("source", src.Name))
	var res PassResult

	wait := func(d time.Duration) bool {
		if err := h.sleep(ctx, d); err != nil {
			return false
		}
		res.WaitedMs += d.Milliseconds()
		return true
	}

	var elapsed time.Duration
	for {
		if !h.blocked(ctx, page) {
			res.Passed = true
			if res.Detected {
				log.Info("challenge cleared while polling", zap.Int64("waited_ms", res.WaitedMs))
			}
			return res
		}
		if !res.Detected {
			res.Detected = true
			res.Vendor = h.classify(ctx, page)
			log.Info("challenge detected", zap.String("vendor", res.Vendor.String()))
		}
		if elapsed >= h.cfg.DetectTimeout {
			break
		}
		if !wait(h.cfg.PollInterval) {
			return res
		}
		elapsed += h.cfg.PollInterval
	}

	if !wait(h.cfg.ExtendedWait) {
		return res
	}

	clicked, err := page.ClickText(ctx, h.cfg.ClickLabels)
	if err != nil {
		log.Debug("verification click failed", zap.Error(err))
	}
	res.Clicked = clicked
	if clicked {
		log.Info("clicked verification affordance")
	}

	if !wait(h.cfg.PostClickWait) {
		return res
	}

	res.Passed = !h.blocked(ctx, page)
	if !res.Passed {
		log.Warn("challenge not cleared", zap.Int64("waited_ms", res.WaitedMs))
	}
	return res
}

// blocked reports whether the page currently shows a challenge. Page errors
// count as blocked so a half-loaded interstitial is not mistaken for content.
func (h *ChallengeHandler) blocked(ctx context.Context, page browser.Page) bool {
	title, err := page.Title(ctx)
	if err != nil {
		h.logger.Debug("title read failed", zap.Error(err))
		return true
	}
	if IsChallengeTitle(title) {
		return true
	}

	found, err := page.Exists(ctx, strings.Join(challengeSelectors, ", "))
	if err != nil {
		h.logger.Debug("marker check failed", zap.Error(err))
		return true
	}
	return found
}

func (h *ChallengeHandler) classify(ctx context.Context, page browser.Page) CaptchaType {
	html, err := page.HTML(ctx)
	if err != nil {
		return NoCaptcha
	}
	kind, _ := h.detector.Detect(html)
	return kind
}

// IsChallengeTitle reports whether title looks like an interstitial.
func IsChallengeTitle(title string) bool {
	t := strings.ToLower(strings.TrimSpace(title))
	for _, marker := range challengeTitles {
		if strings.Contains(t, marker) {
			return true
		}
	}
	return false
}
