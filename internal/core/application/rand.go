package application

import "crypto/rand"

// randRead is the sole indirection point for randomness in this package, so
// tests can substitute a deterministic source without touching call sites.
func randRead(b []byte) error {
	_, err := rand.Read(b)
	return err
}
