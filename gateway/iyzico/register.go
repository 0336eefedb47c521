package iyzico

import "github.com/murat7074/elisishop/gateway"

// Register Iyzico with the gateway registry
func init() {
	gateway.Register("iyzico", New)
}
