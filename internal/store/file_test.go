package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/marketmatch/internal/domain"
	"github.com/davidbz/marketmatch/internal/store"
)

func TestFile_Load(t *testing.T) {
	t.Run("should return an empty table when the file does not exist", func(t *testing.T) {
		f := store.NewFile(filepath.Join(t.TempDir(), "embeddings.json"))

		records, err := f.Load(context.Background())
		require.NoError(t, err)
		require.Empty(t, records)
	})

	t.Run("should fail on unparseable content", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "embeddings.json")
		require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0o600))

		_, err := store.NewFile(path).Load(context.Background())
		require.ErrorIs(t, err, domain.ErrCacheCorrupted)
	})
}

func TestFile_Save(t *testing.T) {
	t.Run("should round-trip the embedding table", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "embeddings.json")
		f := store.NewFile(path)

		records := []domain.EmbeddingRecord{
			{Text: "Will X happen?", Vector: []float64{0.1, 0.2, 0.3}},
			{Text: "Will Y happen?", Vector: []float64{0.4, 0.5, 0.6}},
		}
		require.NoError(t, f.Save(context.Background(), records))

		loaded, err := f.Load(context.Background())
		require.NoError(t, err)
		require.Equal(t, records, loaded)
	})

	t.Run("should create missing parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "embeddings.json")
		f := store.NewFile(path)

		require.NoError(t, f.Save(context.Background(), []domain.EmbeddingRecord{
			{Text: "a", Vector: []float64{1}},
		}))

		loaded, err := f.Load(context.Background())
		require.NoError(t, err)
		require.Len(t, loaded, 1)
	})

	t.Run("should replace the previous table wholesale", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "embeddings.json")
		f := store.NewFile(path)
		ctx := context.Background()

		require.NoError(t, f.Save(ctx, []domain.EmbeddingRecord{
			{Text: "a", Vector: []float64{1}},
			{Text: "b", Vector: []float64{2}},
		}))
		require.NoError(t, f.Save(ctx, []domain.EmbeddingRecord{
			{Text: "c", Vector: []float64{3}},
		}))

		loaded, err := f.Load(ctx)
		require.NoError(t, err)
		require.Len(t, loaded, 1)
		require.Equal(t, "c", loaded[0].Text)
	})

	t.Run("should leave no temporary files behind", func(t *testing.T) {
		dir := t.TempDir()
		f := store.NewFile(filepath.Join(dir, "embeddings.json"))

		require.NoError(t, f.Save(context.Background(), []domain.EmbeddingRecord{
			{Text: "a", Vector: []float64{1}},
		}))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
	})
}
