// Package registry tracks live client connections by user identity.
//
// A user may hold several connections at once (tabs, devices); the registry
// maps each user to the set of their connection handles and fans pushed
// events out to all of them. Delivery is best-effort: a full buffer drops
// the event, and the durable store is what guarantees visibility.
package registry
