package stripe

import "github.com/murat7074/elisishop/gateway"

// Register Stripe with the gateway registry
func init() {
	gateway.Register("stripe", New)
}
