package config

import (
	"fmt"
	"strconv"
	"sync"
)

// GatewayConfig manages payment gateway credential sets. Credentials are read
// from the environment exactly once and handed to adapters as an explicit
// map at construction time; adapters never read the environment themselves.
type GatewayConfig struct {
	configs map[string]map[string]string
	mu      sync.RWMutex
}

// NewGatewayConfig creates an empty gateway configuration
func NewGatewayConfig() *GatewayConfig {
	return &GatewayConfig{
		configs: make(map[string]map[string]string),
	}
}

// LoadFromEnv reads credential sets for every known gateway from the
// environment. A gateway with no credentials configured is simply absent.
func (c *GatewayConfig) LoadFromEnv() {
	app := GetAppConfig()
	testMode := strconv.FormatBool(app.ProviderTestMode)

	if id := GetEnv("PAYTR_MERCHANT_ID", ""); id != "" {
		c.Set("paytr", map[string]string{
			"merchantId":   id,
			"merchantKey":  GetEnv("PAYTR_MERCHANT_KEY", ""),
			"merchantSalt": GetEnv("PAYTR_MERCHANT_SALT", ""),
			"okUrl":        app.FrontendURL + "/me/orders/paytr-success",
			"failUrl":      app.FrontendURL + "/me/orders/paytr-fail",
			"testMode":     testMode,
		})
	}

	if key := GetEnv("SHOPIER_API_KEY", ""); key != "" {
		c.Set("shopier", map[string]string{
			"apiKey":       key,
			"apiSecret":    GetEnv("SHOPIER_API_SECRET", ""),
			"websiteIndex": GetEnv("SHOPIER_WEBSITE_INDEX", "1"),
			"okUrl":        app.FrontendURL + "/me/orders/shopier-success",
			"failUrl":      app.FrontendURL + "/me/orders/shopier-fail",
			"testMode":     testMode,
		})
	}

	if key := GetEnv("IYZICO_API_KEY", ""); key != "" {
		c.Set("iyzico", map[string]string{
			"apiKey":    key,
			"secretKey": GetEnv("IYZICO_SECRET_KEY", ""),
			"okUrl":     app.FrontendURL + "/me/orders/iyzico-success",
			"failUrl":   app.FrontendURL + "/me/orders/iyzico-fail",
			"testMode":  testMode,
		})
	}

	if key := GetEnv("STRIPE_SECRET_KEY", ""); key != "" {
		c.Set("stripe", map[string]string{
			"secretKey":     key,
			"webhookSecret": GetEnv("STRIPE_WEBHOOK_SECRET", ""),
			"okUrl":         app.FrontendURL + "/me/orders/stripe-success",
			"failUrl":       app.FrontendURL + "/me/orders/stripe-fail",
			"testMode":      testMode,
		})
	}
}

// Set stores a credential set for a gateway
func (c *GatewayConfig) Set(name string, conf map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configs[name] = conf
}

// Get returns a copy of the credential set for a gateway
func (c *GatewayConfig) Get(name string) (map[string]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	conf, exists := c.configs[name]
	if !exists {
		return nil, fmt.Errorf("no configuration found for gateway: %s", name)
	}

	confCopy := make(map[string]string, len(conf))
	for k, v := range conf {
		confCopy[k] = v
	}
	return confCopy, nil
}

// Available returns the names of all gateways that have credentials configured
func (c *GatewayConfig) Available() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.configs))
	for name := range c.configs {
		names = append(names, name)
	}
	return names
}
