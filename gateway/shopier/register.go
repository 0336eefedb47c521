package shopier

import "github.com/murat7074/elisishop/gateway"

// Register Shopier with the gateway registry
func init() {
	gateway.Register("shopier", New)
}
