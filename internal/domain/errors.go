package domain

import "errors"

var (
	// ErrEncryptionKeyNotSet indicates the symmetric key required to decrypt
	// the shared dataset is missing from the environment. Fatal, not retried.
	ErrEncryptionKeyNotSet = errors.New("encryption key not set")

	// ErrDecryptionFailed indicates ciphertext failed its integrity check
	// (tampered data or wrong key). Fatal, not retried.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrAllSourcesFailed indicates every configured market source failed in
	// one aggregation cycle. Returning an empty table silently would be
	// indistinguishable from "no markets exist", so the cycle fails instead.
	ErrAllSourcesFailed = errors.New("all market sources failed")

	// ErrEmbeddingProvider indicates the remote embedding capability was
	// unreachable or returned malformed output. Scoped to the missing delta:
	// previously cached embeddings remain valid.
	ErrEmbeddingProvider = errors.New("embedding provider failed")

	// ErrCacheCorrupted indicates a stored resource failed a basic shape
	// check (e.g. vector-length mismatch). Treated as a cache miss.
	ErrCacheCorrupted = errors.New("cached resource corrupted")
)
