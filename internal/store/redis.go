package store

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"

	"github.com/redis/go-redis/v9"

	"github.com/davidbz/marketmatch/internal/domain"
)

const bytesPerFloat32 = 4

// Redis persists the embedding table in a Redis hash, one field per distinct
// question text (keyed by its sha256), vectors packed as little-endian
// float32 bytes. Useful when several matcher instances share one embedding
// cache.
type Redis struct {
	client *redis.Client
	key    string
}

// redisRecord is the per-field wire format.
type redisRecord struct {
	Text   string `json:"text"`
	Vector []byte `json:"vector"` // little-endian float32
}

// NewRedis creates a Redis-backed store. key names the hash holding the
// table, e.g. "marketmatch:embeddings".
func NewRedis(client *redis.Client, key string) *Redis {
	return &Redis{client: client, key: key}
}

// Load reads the full table. A missing hash is an empty table.
func (r *Redis) Load(ctx context.Context) ([]domain.EmbeddingRecord, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", r.key, err)
	}

	records := make([]domain.EmbeddingRecord, 0, len(fields))
	for _, raw := range fields {
		var stored redisRecord
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrCacheCorrupted, r.key, err)
		}
		if len(stored.Vector)%bytesPerFloat32 != 0 {
			return nil, fmt.Errorf("%w: %s: vector byte length %d",
				domain.ErrCacheCorrupted, r.key, len(stored.Vector))
		}
		records = append(records, domain.EmbeddingRecord{
			Text:   stored.Text,
			Vector: bytesToFloats(stored.Vector),
		})
	}
	return records, nil
}

// Save replaces the stored table. Fields are written to a staging hash which
// is then RENAMEd over the live key, so concurrent readers see either the
// old complete table or the new one.
func (r *Redis) Save(ctx context.Context, records []domain.EmbeddingRecord) error {
	staging := r.key + ":staging"

	if len(records) == 0 {
		if err := r.client.Del(ctx, r.key, staging).Err(); err != nil {
			return fmt.Errorf("clearing %s: %w", r.key, err)
		}
		return nil
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, staging)
	for _, record := range records {
		encoded, err := json.Marshal(redisRecord{
			Text:   record.Text,
			Vector: floatsToBytes(record.Vector),
		})
		if err != nil {
			return fmt.Errorf("encoding record: %w", err)
		}
		pipe.HSet(ctx, staging, fieldKey(record.Text), encoded)
	}
	pipe.Rename(ctx, staging, r.key)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing %s: %w", r.key, err)
	}
	return nil
}

func fieldKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// floatsToBytes converts a float64 vector to packed little-endian float32
// bytes.
func floatsToBytes(fs []float64) []byte {
	buf := make([]byte, len(fs)*bytesPerFloat32)
	for i, f := range fs {
		binary.LittleEndian.PutUint32(buf[i*bytesPerFloat32:], math.Float32bits(float32(f)))
	}
	return buf
}

// bytesToFloats is the inverse of floatsToBytes.
func bytesToFloats(buf []byte) []float64 {
	fs := make([]float64, len(buf)/bytesPerFloat32)
	for i := range fs {
		fs[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[i*bytesPerFloat32:])))
	}
	return fs
}
