// Package testutils generates randomized domain fixtures for tests.
// Every helper returns plausible data with unique identifying fields so
// tests can create many records without colliding on unique constraints.
package testutils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const letterBytes = "abcdefghijklmnopqrstuvwxyz"

var emailDomains = []string{
	"example.com", "test.com", "corp.example.org",
}

// RandomString returns a random lowercase string of length n.
func RandomString(n int) string {
	if n <= 0 {
		return ""
	}

	result := make([]byte, n)
	for i := range result {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(letterBytes))))
		if err != nil {
			panic(fmt.Sprintf("failed to generate random string: %v", err))
		}
		result[i] = letterBytes[num.Int64()]
	}

	return string(result)
}

// RandomInt returns a random integer in [min, max].
func RandomInt(min, max int) int {
	if min >= max {
		return min
	}

	n, err := rand.Int(rand.Reader, big.NewInt(int64(max-min+1)))
	if err != nil {
		panic(fmt.Sprintf("failed to generate random int: %v", err))
	}
	return int(n.Int64()) + min
}

// RandomEmail returns a random address on one of a few fixed test domains.
func RandomEmail() string {
	user := strings.ToLower(RandomString(10))
	domain := emailDomains[RandomInt(0, len(emailDomains)-1)]
	return fmt.Sprintf("%s@%s", user, domain)
}

// RandomTimestamp returns a random time between start and end.
func RandomTimestamp(start, end time.Time) time.Time {
	delta := end.Unix() - start.Unix()
	if delta <= 0 {
		return start
	}

	sec, err := rand.Int(rand.Reader, big.NewInt(delta))
	if err != nil {
		panic(fmt.Sprintf("failed to generate random timestamp: %v", err))
	}
	return time.Unix(start.Unix()+sec.Int64(), 0)
}

// PickOne returns a random element of values.
func PickOne[T any](values []T) T {
	return values[RandomInt(0, len(values)-1)]
}

// GenerateN builds a slice of n fixtures from generator.
func GenerateN[T any](n int, generator func() T) []T {
	items := make([]T, n)
	for i := range items {
		items[i] = generator()
	}
	return items
}
