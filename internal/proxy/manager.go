// internal/proxy/manager.go
package proxy

import (
	"fmt"
	"math/rand"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/valpere/CatalogHarvest/internal/browser"
	"github.com/valpere/CatalogHarvest/internal/config"
	"github.com/valpere/CatalogHarvest/internal/errors"
)

// Manager hands out proxies from a pool and benches the ones that keep
// failing.
type Manager struct {
	cfg     config.ProxyConfig
	proxies []*Instance
	byName  map[string]*Instance
	logger  *zap.Logger

	mu           sync.Mutex
	rng          *rand.Rand
	currentIndex int
	stats        ManagerStats

	now func() time.Time
}

// NewManager builds the pool from cfg. Disabled providers are skipped.
func NewManager(cfg config.ProxyConfig, rng *rand.Rand, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}

	m := &Manager{
		cfg:    cfg,
		byName: make(map[string]*Instance),
		logger: logger,
		rng:    rng,
		now:    time.Now,
	}
	for _, p := range cfg.Providers {
		if p.Disabled {
			continue
		}
		u, err := buildProxyURL(p)
		if err != nil {
			return nil, errors.New(errors.KindConfig, "proxy.new_manager", err)
		}
		inst := &Instance{Provider: p, URL: u, status: Status{Available: true}}
		m.proxies = append(m.proxies, inst)
		m.byName[p.Name] = inst
	}
	m.stats.TotalProxies = len(m.proxies)
	return m, nil
}

func buildProxyURL(p config.ProxyProvider) (*url.URL, error) {
	switch p.Type {
	case "http", "https", "socks5":
	case "":
		p.Type = "http"
	default:
		return nil, fmt.Errorf("unsupported proxy type %q for %s", p.Type, p.Name)
	}
	if p.Host == "" || p.Port <= 0 {
		return nil, fmt.Errorf("proxy %s needs a host and port", p.Name)
	}
	return &url.URL{Scheme: p.Type, Host: p.Host + ":" + strconv.Itoa(p.Port)}, nil
}

// Enabled reports whether the pool has anything to hand out.
func (m *Manager) Enabled() bool {
	return m.cfg.Enabled && len(m.proxies) > 0
}

// Next returns the next available proxy according to the rotation.
func (m *Manager) Next() (*Instance, error) {
	if !m.Enabled() {
		return nil, errors.New(errors.KindConfig, "proxy.next", fmt.Errorf("proxy pool is disabled or empty"))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var inst *Instance
	switch m.cfg.Rotation {
	case RotationRandom:
		if avail := m.available(); len(avail) > 0 {
			inst = avail[m.rng.Intn(len(avail))]
		}
	case RotationWeighted:
		inst = m.weighted(m.available())
	default:
		inst = m.roundRobin()
	}
	if inst == nil {
		return nil, errors.New(errors.KindTransient, "proxy.next", fmt.Errorf("no healthy proxies available"))
	}

	inst.mu.Lock()
	inst.status.UseCount++
	inst.mu.Unlock()
	m.stats.TotalRequests++
	return inst, nil
}

func (m *Manager) roundRobin() *Instance {
	for i := 0; i < len(m.proxies); i++ {
		index := (m.currentIndex + i) % len(m.proxies)
		if m.usable(m.proxies[index]) {
			m.currentIndex = (index + 1) % len(m.proxies)
			return m.proxies[index]
		}
	}
	return nil
}

func (m *Manager) weighted(avail []*Instance) *Instance {
	total := 0
	for _, inst := range avail {
		total += weightOf(inst)
	}
	if total == 0 {
		return nil
	}
	pick := m.rng.Intn(total)
	for _, inst := range avail {
		pick -= weightOf(inst)
		if pick < 0 {
			return inst
		}
	}
	return avail[len(avail)-1]
}

func weightOf(inst *Instance) int {
	if inst.Provider.Weight <= 0 {
		return 1
	}
	return inst.Provider.Weight
}

func (m *Manager) available() []*Instance {
	var out []*Instance
	for _, inst := range m.proxies {
		if m.usable(inst) {
			out = append(out, inst)
		}
	}
	return out
}

// usable reports availability, returning a benched proxy to rotation once
// RecoveryTime has passed since its last failure.
func (m *Manager) usable(inst *Instance) bool {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.status.Available {
		return true
	}
	if m.cfg.RecoveryTime > 0 && m.now().Sub(inst.status.LastFailure) >= m.cfg.RecoveryTime {
		inst.status.Available = true
		inst.status.FailureCount = 0
		m.logger.Info("proxy recovered", zap.String("proxy", inst.Provider.Name))
		return true
	}
	return false
}

// ReportSuccess clears the failure streak of inst.
func (m *Manager) ReportSuccess(inst *Instance) {
	if inst == nil {
		return
	}
	inst.mu.Lock()
	inst.status.LastSuccess = m.now()
	inst.status.FailureCount = 0
	inst.status.Available = true
	inst.mu.Unlock()

	m.mu.Lock()
	m.stats.SuccessCount++
	m.mu.Unlock()
}

// ReportFailure counts a failure and benches inst at the threshold.
func (m *Manager) ReportFailure(inst *Instance, err error) {
	if inst == nil {
		return
	}
	inst.mu.Lock()
	inst.status.FailureCount++
	inst.status.LastFailure = m.now()
	benched := inst.status.Available && inst.status.FailureCount >= m.cfg.FailureThreshold
	if benched {
		inst.status.Available = false
	}
	inst.mu.Unlock()

	m.mu.Lock()
	m.stats.FailureCount++
	m.mu.Unlock()

	if benched {
		m.logger.Warn("proxy taken out of rotation",
			zap.String("proxy", inst.Provider.Name),
			zap.Duration("recovery_time", m.cfg.RecoveryTime),
			zap.Error(err))
	}
}

// Acquire returns the next proxy as a browser egress.
func (m *Manager) Acquire() (*browser.ProxyEndpoint, error) {
	inst, err := m.Next()
	if err != nil {
		return nil, err
	}
	return &browser.ProxyEndpoint{
		Name:     inst.Provider.Name,
		Server:   inst.URL.String(),
		Username: inst.Provider.Username,
		Password: inst.Provider.Password,
	}, nil
}

// Report feeds the outcome of a session back to the proxy it used.
func (m *Manager) Report(ep *browser.ProxyEndpoint, err error) {
	if ep == nil {
		return
	}
	inst, ok := m.byName[ep.Name]
	if !ok {
		return
	}
	if err != nil {
		m.ReportFailure(inst, err)
		return
	}
	m.ReportSuccess(inst)
}

// Stats returns a snapshot of pool counters.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	stats := m.stats
	m.mu.Unlock()

	for _, inst := range m.proxies {
		if inst.Status().Available {
			stats.HealthyProxies++
		}
	}
	return stats
}
