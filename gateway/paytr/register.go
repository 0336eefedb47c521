package paytr

import "github.com/murat7074/elisishop/gateway"

// Register PayTR with the gateway registry
func init() {
	gateway.Register("paytr", New)
}
