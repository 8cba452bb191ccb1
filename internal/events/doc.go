// Package events provides the typed publish/subscribe registry used for every
// observability signal in the REST client and the gateway session.
//
// Subscribers are kept in registration order. Emit invokes them synchronously
// over a snapshot, so a subscriber may unsubscribe itself (or others) while an
// emission is in progress without affecting that pass.
package events
