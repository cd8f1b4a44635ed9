// Package hash provides content hashes and deterministic chunk identifiers.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// IDLength is the number of hex characters in chunk and document IDs.
const IDLength = 16

// SHA256 computes the SHA256 hash of data and returns it as a hex string.
func SHA256(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SHA256String computes the SHA256 hash of a string.
func SHA256String(s string) string {
	return SHA256([]byte(s))
}

// SHA256Short returns the first n characters of a SHA256 hash.
func SHA256Short(data []byte, n int) string {
	h := SHA256(data)
	if n > len(h) {
		return h
	}
	return h[:n]
}

// ChunkID returns a stable ID for the core byte range [start, end) of the
// file at path. Re-chunking unchanged content yields the same IDs.
func ChunkID(path string, start, end int) string {
	return SHA256Short([]byte(join(path, strconv.Itoa(start), strconv.Itoa(end))), IDLength)
}

// DocumentID generates a deterministic document ID from path and content hash.
func DocumentID(path, contentHash string) string {
	return SHA256Short([]byte(join(path, contentHash)), IDLength)
}

// ContentHash hashes the rendered text of a chunk together with its
// location, for deduplication across runs.
func ContentHash(path string, start, end int, text string) string {
	return SHA256String(join(path, strconv.Itoa(start), strconv.Itoa(end), text))
}

func join(parts ...string) string {
	return strings.Join(parts, "\x00")
}
