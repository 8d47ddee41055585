// internal/browser/session.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/valpere/CatalogHarvest/internal/config"
	"github.com/valpere/CatalogHarvest/internal/errors"
	"github.com/valpere/CatalogHarvest/internal/utils"
)

// PageSession is a Page that owns browser resources until closed.
type PageSession interface {
	Page
	Close() error
}

// SessionManager owns the one browser process of a run.
type SessionManager struct {
	cfg    config.BrowserConfig
	crawl  config.CrawlConfig
	script EvasionScript
	logger *zap.Logger

	allocCancel context.CancelFunc
	browserCtx  context.Context

	mu     sync.Mutex
	stats  BrowserStats
	closed bool
}

// AllocatorOptions translates browser settings into chromedp flags.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(1920, 1080),
	)

	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox) // Required for Docker environments
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.ProxyServer != "" {
		opts = append(opts, chromedp.ProxyServer(cfg.ProxyServer))
	}
	if cfg.DisableImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}
	if cfg.Locale != "" {
		opts = append(opts, chromedp.Flag("lang", cfg.Locale))
	}
	return opts
}

// NewSessionManager launches the browser. A launch failure is fatal for
// the run.
func NewSessionManager(ctx context.Context, cfg config.BrowserConfig, crawl config.CrawlConfig, logger *zap.Logger) (*SessionManager, error) {
	logger = utils.OrNop(logger).Named("browser")

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, AllocatorOptions(cfg)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Sugar().Debugf),
		chromedp.WithErrorf(logger.Sugar().Debugf),
	)

	// the first Run starts the process; it must not carry a deadline
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, errors.Fatal("browser.launch", fmt.Errorf("failed to start browser: %w", err))
	}

	logger.Info("browser started", zap.Bool("headless", cfg.Headless))

	return &SessionManager{
		cfg:         cfg,
		crawl:       crawl,
		script:      StealthScript{},
		logger:      logger,
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
	}, nil
}

// SetEvasionScript swaps the payload installed into new sessions.
func (m *SessionManager) SetEvasionScript(script EvasionScript) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = script
}

// OpenSession creates an isolated browser context (own cookies and
// storage) presenting profile.
func (m *SessionManager) OpenSession(ctx context.Context, profile FingerprintProfile) (*Session, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("session manager is closed")
	}
	script := m.script
	m.stats.SessionsOpened++
	m.mu.Unlock()

	if profile.Locale == "" {
		profile.Locale = m.cfg.Locale
	}
	if profile.Timezone == "" {
		profile.Timezone = m.cfg.Timezone
	}
	profile = profile.withDefaults()

	tabCtx, cancel := chromedp.NewContext(m.browserCtx, chromedp.WithNewBrowserContext(browserContextOptions(profile.Proxy)...))
	if profile.Proxy != nil && profile.Proxy.Username != "" {
		chromedp.ListenTarget(tabCtx, proxyAuthListener(tabCtx, *profile.Proxy))
	}
	s := &Session{
		ctx:        tabCtx,
		cancel:     cancel,
		profile:    profile,
		navTimeout: m.crawl.NavigationTimeout,
		manager:    m,
	}

	// allocate the target on the undecorated context first
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, errors.New(errors.KindTransient, "browser.open_session", err)
	}

	setupCtx, done := s.scope(ctx, m.crawl.NavigationTimeout)
	defer done()

	err := chromedp.Run(setupCtx,
		emulation.SetUserAgentOverride(profile.UserAgent).
			WithAcceptLanguage(strings.Join(profile.Languages, ",")).
			WithPlatform(profile.Platform),
		emulation.SetLocaleOverride().WithLocale(profile.Locale),
		emulation.SetTimezoneOverride(profile.Timezone),
		chromedp.EmulateViewport(int64(profile.Width), int64(profile.Height)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if profile.Proxy == nil || profile.Proxy.Username == "" {
				return nil
			}
			return fetch.Enable().WithHandleAuthRequests(true).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if script == nil {
				return nil
			}
			_, err := page.AddScriptToEvaluateOnNewDocument(script.Source(profile)).Do(ctx)
			return err
		}),
	)
	if err != nil {
		s.Close()
		return nil, errors.New(errors.KindTransient, "browser.open_session", fmt.Errorf("failed to prepare session: %w", err))
	}

	m.logger.Debug("session opened",
		zap.String("user_agent", profile.UserAgent),
		zap.String("proxy", proxyName(profile.Proxy)),
		zap.Int("width", profile.Width),
		zap.Int("height", profile.Height))
	return s, nil
}

// browserContextOptions routes a new browser context through ep.
func browserContextOptions(ep *ProxyEndpoint) []chromedp.CreateBrowserContextOption {
	if ep == nil || ep.Server == "" {
		return nil
	}
	return []chromedp.CreateBrowserContextOption{
		func(p *target.CreateBrowserContextParams) *target.CreateBrowserContextParams {
			return p.WithProxyServer(ep.Server)
		},
	}
}

// proxyAuthListener answers proxy auth challenges with ep's credentials and
// releases every other paused request. It is only installed when the
// Fetch domain is enabled for auth handling.
func proxyAuthListener(ctx context.Context, ep ProxyEndpoint) func(ev interface{}) {
	return func(ev interface{}) {
		switch e := ev.(type) {
		case *fetch.EventRequestPaused:
			go func() {
				_ = chromedp.Run(ctx, fetch.ContinueRequest(e.RequestID))
			}()
		case *fetch.EventAuthRequired:
			resp := &fetch.AuthChallengeResponse{Response: fetch.AuthChallengeResponseResponseCancelAuth}
			if e.AuthChallenge != nil && e.AuthChallenge.Source == fetch.AuthChallengeSourceProxy {
				resp = &fetch.AuthChallengeResponse{
					Response: fetch.AuthChallengeResponseResponseProvideCredentials,
					Username: ep.Username,
					Password: ep.Password,
				}
			}
			go func() {
				_ = chromedp.Run(ctx, fetch.ContinueWithAuth(e.RequestID, resp))
			}()
		}
	}
}

func proxyName(ep *ProxyEndpoint) string {
	if ep == nil {
		return ""
	}
	return ep.Name
}

// Stats returns a copy of the counters.
func (m *SessionManager) Stats() BrowserStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *SessionManager) record(fn func(*BrowserStats)) {
	m.mu.Lock()
	fn(&m.stats)
	m.mu.Unlock()
}

// Close shuts the browser down. Safe to call more than once.
func (m *SessionManager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	err := chromedp.Cancel(m.browserCtx)
	m.allocCancel()
	m.logger.Info("browser closed")
	return err
}

// Session is one isolated tab. It implements Page.
type Session struct {
	ctx        context.Context
	cancel     context.CancelFunc
	profile    FingerprintProfile
	navTimeout time.Duration
	manager    *SessionManager

	closeOnce sync.Once
	closeErr  error
}

// scope derives a context bound to the tab that is also cancelled when the
// caller's ctx is done.
func (s *Session) scope(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(s.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(s.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// Profile returns the identity this session presents.
func (s *Session) Profile() FingerprintProfile {
	return s.profile
}

// Navigate implements Page.
func (s *Session) Navigate(ctx context.Context, url string) error {
	runCtx, done := s.scope(ctx, s.navTimeout)
	defer done()

	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		s.manager.record(func(st *BrowserStats) {
			st.Errors++
			if runCtx.Err() == context.DeadlineExceeded {
				st.TimeoutsOccurred++
			}
		})
		return errors.New(errors.KindTransient, "browser.navigate", fmt.Errorf("navigation to %s failed: %w", url, err))
	}
	s.manager.record(func(st *BrowserStats) { st.PagesLoaded++ })
	return nil
}

// HTML implements Page.
func (s *Session) HTML(ctx context.Context) (string, error) {
	runCtx, done := s.scope(ctx, s.navTimeout)
	defer done()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to get HTML: %w", err)
	}
	return html, nil
}

// Title implements Page.
func (s *Session) Title(ctx context.Context) (string, error) {
	runCtx, done := s.scope(ctx, s.navTimeout)
	defer done()

	var title string
	if err := chromedp.Run(runCtx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("failed to read title: %w", err)
	}
	return title, nil
}

// Exists implements Page.
func (s *Session) Exists(ctx context.Context, selector string) (bool, error) {
	var found bool
	script := fmt.Sprintf("document.querySelector(%s) !== null", jsString(selector))
	if err := s.Evaluate(ctx, script, &found); err != nil {
		return false, err
	}
	return found, nil
}

// WaitReady implements Page.
func (s *Session) WaitReady(ctx context.Context, selector string, timeout time.Duration) error {
	runCtx, done := s.scope(ctx, timeout)
	defer done()

	if err := chromedp.Run(runCtx, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		s.manager.record(func(st *BrowserStats) { st.TimeoutsOccurred++ })
		return fmt.Errorf("element wait timeout for %q: %w", selector, err)
	}
	return nil
}

// Evaluate implements Page.
func (s *Session) Evaluate(ctx context.Context, script string, res interface{}) error {
	runCtx, done := s.scope(ctx, s.navTimeout)
	defer done()

	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, res)); err != nil {
		return fmt.Errorf("script execution failed: %w", err)
	}
	return nil
}

// MouseMove implements Page.
func (s *Session) MouseMove(ctx context.Context, x, y float64) error {
	runCtx, done := s.scope(ctx, s.navTimeout)
	defer done()
	return chromedp.Run(runCtx, input.DispatchMouseEvent(input.MouseMoved, x, y))
}

// MouseClick implements Page.
func (s *Session) MouseClick(ctx context.Context, x, y float64) error {
	runCtx, done := s.scope(ctx, s.navTimeout)
	defer done()
	return chromedp.Run(runCtx, chromedp.MouseClickXY(x, y))
}

// Scroll implements Page. The wheel event is dispatched at the viewport
// centre so scroll listeners fire as they would for a person.
func (s *Session) Scroll(ctx context.Context, dy int) (bool, error) {
	runCtx, done := s.scope(ctx, s.navTimeout)
	defer done()

	cx, cy := float64(s.profile.Width)/2, float64(s.profile.Height)/2
	var atBottom bool
	err := chromedp.Run(runCtx,
		input.DispatchMouseEvent(input.MouseWheel, cx, cy).WithDeltaX(0).WithDeltaY(float64(dy)),
		chromedp.Evaluate(scrollBottomScript, &atBottom),
	)
	if err != nil {
		return false, fmt.Errorf("scroll failed: %w", err)
	}
	return atBottom, nil
}

const scrollBottomScript = `Math.ceil(window.innerHeight + window.scrollY) >= document.documentElement.scrollHeight - 2`

// ClickText implements Page.
func (s *Session) ClickText(ctx context.Context, labels []string) (bool, error) {
	lowered := make([]string, 0, len(labels))
	for _, l := range labels {
		if l = strings.ToLower(strings.TrimSpace(l)); l != "" {
			lowered = append(lowered, l)
		}
	}
	if len(lowered) == 0 {
		return false, nil
	}
	encoded, err := json.Marshal(lowered)
	if err != nil {
		return false, err
	}

	var clicked bool
	if err := s.Evaluate(ctx, fmt.Sprintf(clickTextScript, encoded), &clicked); err != nil {
		return false, err
	}
	return clicked, nil
}

const clickTextScript = `(() => {
  const labels = %s;
  const nodes = document.querySelectorAll('button, a, input[type=submit], input[type=button], [role=button], label');
  for (const el of nodes) {
    const text = String(el.innerText || el.value || el.getAttribute('aria-label') || '').toLowerCase();
    if (text && labels.some(l => text.includes(l))) {
      el.click();
      return true;
    }
  }
  return false;
})()`

// Viewport implements Page.
func (s *Session) Viewport() (int, int) {
	return s.profile.Width, s.profile.Height
}

// Close disposes the tab and its browser context.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = chromedp.Cancel(s.ctx)
		s.cancel()
	})
	return s.closeErr
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
