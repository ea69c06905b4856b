package util

import gonanoid "github.com/matoous/go-nanoid/v2"

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandStr returns a cryptographically random alphanumeric string of length n
func RandStr(n int) (string, error) {
	return gonanoid.Generate(charset, n)
}

// MustRandStr is RandStr for callers that can't handle an error, e.g. request
// IDs. It panics if the system random source fails.
func MustRandStr(n int) string {
	return gonanoid.MustGenerate(charset, n)
}
