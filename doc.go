// Package elisishop is the checkout and payment backend of a handmade-goods
// store. It validates baskets against live per-color inventory, opens signed
// payment sessions with Turkish payment gateways, verifies asynchronous
// webhook notifications via HMAC, and reconciles verified payments into
// persisted orders with atomic stock decrements and buyer/seller emails.
//
// # Architecture
//
// The payment flow follows this pattern:
//
//	frontend ──► POST /payment/checkout_session ──► stock validation
//	                                              ──► gateway checkout (signed)
//	                                              ──► session snapshot (SQLite)
//
//	gateway  ──► POST /payment/webhook/{provider} ──► HMAC verification
//	                                              ──► order + stock decrement (one tx)
//	                                              ──► buyer / seller emails
//
// Gateways register themselves through gateway.Register in their package
// init, and exactly one is active per deployment (PAYMENT_PROVIDER).
// Supported gateways: PayTR, Shopier, Iyzico and Stripe (dormant).
//
// Orders are keyed by the merchant_oid correlation id, which makes webhook
// processing idempotent: redelivered notifications are acknowledged without
// side effects.
package elisishop
