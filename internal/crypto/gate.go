// Package crypto provides the decryption gate for pre-encrypted shared
// datasets. The datasets use the Fernet symmetric scheme (AES-128-CBC with an
// HMAC-SHA256 integrity tag, base64url key), so a tampered blob or a wrong
// key fails closed rather than producing garbage plaintext.
package crypto

import (
	"fmt"

	"github.com/fernet/fernet-go"

	"github.com/davidbz/marketmatch/internal/domain"
)

// Gate decrypts shared dataset blobs with a single symmetric key.
type Gate struct {
	key *fernet.Key
}

// NewGate creates a gate from a base64url-encoded Fernet key, typically the
// MARKETMATCH_ENCRYPTION_KEY environment value. An empty key is a
// configuration error; retrying cannot succeed without operator action.
func NewGate(encodedKey string) (*Gate, error) {
	if encodedKey == "" {
		return nil, domain.ErrEncryptionKeyNotSet
	}

	key, err := fernet.DecodeKey(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid encryption key: %v", domain.ErrEncryptionKeyNotSet, err)
	}
	return &Gate{key: key}, nil
}

// Decrypt verifies and decrypts a Fernet token. Failure means the blob was
// tampered with or encrypted under a different key; it is fatal and must not
// be retried. No partial state is retained.
func (g *Gate) Decrypt(blob []byte) ([]byte, error) {
	// Dataset tokens are long-lived; a negative ttl disables the timestamp
	// check, leaving only the integrity check.
	plaintext := fernet.VerifyAndDecrypt(blob, -1, []*fernet.Key{g.key})
	if plaintext == nil {
		return nil, domain.ErrDecryptionFailed
	}
	return plaintext, nil
}

// Encrypt signs and encrypts plaintext into a Fernet token. Used by dataset
// publishing tooling and tests; the matching Decrypt accepts its output.
func (g *Gate) Encrypt(plaintext []byte) ([]byte, error) {
	token, err := fernet.EncryptAndSign(plaintext, g.key)
	if err != nil {
		return nil, fmt.Errorf("encrypting dataset: %w", err)
	}
	return token, nil
}

// GenerateKey returns a new base64url-encoded Fernet key for dataset
// publishing.
func GenerateKey() (string, error) {
	var key fernet.Key
	if err := key.Generate(); err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}
	return key.Encode(), nil
}
