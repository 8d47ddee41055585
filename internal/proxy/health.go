// internal/proxy/health.go
package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HealthCheck fetches the check URL through every proxy and updates their
// status. It returns the number of proxies that answered.
func (m *Manager) HealthCheck(ctx context.Context) int {
	checkURL := m.cfg.HealthCheckURL
	if checkURL == "" {
		checkURL = DefaultHealthCheckURL
	}

	m.mu.Lock()
	m.stats.LastHealthCheck = m.now()
	m.mu.Unlock()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		healthy int
	)
	for _, inst := range m.proxies {
		wg.Add(1)
		go func(inst *Instance) {
			defer wg.Done()
			start := time.Now()
			err := m.check(ctx, inst, checkURL)

			inst.mu.Lock()
			inst.status.LastChecked = m.now()
			inst.status.ResponseTime = time.Since(start)
			inst.mu.Unlock()

			if err != nil {
				m.logger.Debug("proxy health check failed", zap.String("proxy", inst.Provider.Name), zap.Error(err))
				m.ReportFailure(inst, err)
				return
			}
			m.ReportSuccess(inst)
			mu.Lock()
			healthy++
			mu.Unlock()
		}(inst)
	}
	wg.Wait()
	return healthy
}

func (m *Manager) check(ctx context.Context, inst *Instance, checkURL string) error {
	proxyURL := *inst.URL
	if inst.Provider.Username != "" {
		proxyURL.User = url.UserPassword(inst.Provider.Username, inst.Provider.Password)
	}
	client := &http.Client{
		Transport: &http.Transport{Proxy: http.ProxyURL(&proxyURL)},
		Timeout:   m.cfg.Timeout,
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checkURL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	return nil
}

// Start runs HealthCheck every interval until ctx is done.
func (m *Manager) Start(ctx context.Context, interval time.Duration) {
	if !m.cfg.HealthCheck || interval <= 0 || !m.Enabled() {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				healthy := m.HealthCheck(ctx)
				m.logger.Debug("proxy health check", zap.Int("healthy", healthy), zap.Int("total", len(m.proxies)))
			}
		}
	}()
}
