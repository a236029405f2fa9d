// Package id generates and checks job identifiers.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"
)

var pattern = regexp.MustCompile(`^job-[0-9]+(-[0-9a-f]{8})?$`)

// Generate creates a new unique job ID.
// Format: job-<timestamp>-<random>
// Example: job-1701432000-a1b2c3d4
func Generate() string {
	timestamp := time.Now().Unix()
	random := make([]byte, 4)
	if _, err := rand.Read(random); err != nil {
		return fmt.Sprintf("job-%d", timestamp)
	}
	return fmt.Sprintf("job-%d-%s", timestamp, hex.EncodeToString(random))
}

// Valid reports whether s has the shape of a generated ID. Job IDs name
// directories on disk, so anything else is rejected at the edges.
func Valid(s string) bool {
	return pattern.MatchString(s)
}
