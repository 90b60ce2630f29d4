package quota

import "sync"

var (
	// defaultService holds the shared process-wide service instance.
	defaultService *Service

	// defaultMu protects access to defaultService.
	defaultMu sync.RWMutex
)

// Default returns the shared quota service for this process, creating it
// with default configuration on first use. Concurrent callers sharing the
// default service share one pending queue and one in-flight flush guard,
// which is what makes flushes single-flight process-wide.
//
// Applications wire a configured instance at startup with SetDefault;
// tests prefer dependency injection with explicit Service instances.
func Default() *Service {
	defaultMu.RLock()
	svc := defaultService
	defaultMu.RUnlock()
	if svc != nil {
		return svc
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultService == nil {
		defaultService = NewService(Config{})
	}
	return defaultService
}

// SetDefault replaces the shared service instance. Call once at startup,
// before any caller uses Default.
func SetDefault(svc *Service) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultService = svc
}
