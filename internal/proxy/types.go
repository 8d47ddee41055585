// internal/proxy/types.go
package proxy

import (
	"net/url"
	"sync"
	"time"

	"github.com/valpere/CatalogHarvest/internal/config"
)

// Rotation strategies
const (
	RotationRoundRobin = "round_robin"
	RotationRandom     = "random"
	RotationWeighted   = "weighted"
)

// DefaultHealthCheckURL is fetched through each proxy when the config
// names none.
const DefaultHealthCheckURL = "http://httpbin.org/ip"

// Instance is one provider in the pool.
type Instance struct {
	Provider config.ProxyProvider
	URL      *url.URL

	mu     sync.RWMutex
	status Status
}

// Status tracks the health of an Instance.
type Status struct {
	Available    bool
	FailureCount int
	UseCount     int64
	LastFailure  time.Time
	LastSuccess  time.Time
	LastChecked  time.Time
	ResponseTime time.Duration
}

// Status returns a copy of the current status.
func (i *Instance) Status() Status {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.status
}

// ManagerStats summarises the pool.
type ManagerStats struct {
	TotalProxies    int
	HealthyProxies  int
	TotalRequests   int64
	SuccessCount    int64
	FailureCount    int64
	LastHealthCheck time.Time
}
