// Package dedupe provides a time-based cache for suppressing duplicate
// send retries within a configurable window.
package dedupe
