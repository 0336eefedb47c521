package gateway

import (
	"fmt"
	"sync"
)

// GatewayFactory is a function that creates a new gateway instance
type GatewayFactory func() PaymentGateway

var (
	registry = make(map[string]GatewayFactory)
	mu       sync.RWMutex
)

// Register adds a gateway factory to the registry.
// Called from each gateway package's init().
func Register(name string, factory GatewayFactory) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = factory
}

// Get creates a new instance of the named gateway
func Get(name string) (PaymentGateway, error) {
	mu.RLock()
	factory, ok := registry[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown payment gateway: %s", name)
	}
	return factory(), nil
}

// Registered returns the names of all registered gateways
func Registered() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
