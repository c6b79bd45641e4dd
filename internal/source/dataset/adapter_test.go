package dataset_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/marketmatch/internal/crypto"
	"github.com/davidbz/marketmatch/internal/domain"
	"github.com/davidbz/marketmatch/internal/source/dataset"
)

func newGate(t *testing.T) *crypto.Gate {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	gate, err := crypto.NewGate(key)
	require.NoError(t, err)
	return gate
}

func encryptedDataset(t *testing.T, gate *crypto.Gate) []byte {
	t.Helper()
	blob, err := gate.Encrypt([]byte(`[
		{
			"id": "manifold:1",
			"question": "Will X happen?",
			"source_platform": "Manifold",
			"formatted_outcomes": "Yes: 60.0%; No: 40.0%",
			"url": "https://manifold.markets/x"
		}
	]`))
	require.NoError(t, err)
	return blob
}

func TestAdapter_FetchMarkets(t *testing.T) {
	t.Run("should decrypt and decode a local dataset file", func(t *testing.T) {
		gate := newGate(t)
		path := filepath.Join(t.TempDir(), "dataset.bin")
		require.NoError(t, os.WriteFile(path, encryptedDataset(t, gate), 0o600))

		adapter := dataset.New(dataset.Config{Path: path}, gate, time.Second)

		records, err := adapter.FetchMarkets(context.Background())
		require.NoError(t, err)
		require.Len(t, records, 1)
		require.Equal(t, "Will X happen?", records[0].Question)
		require.Equal(t, "Manifold", records[0].SourcePlatform)
	})

	t.Run("should download a remote dataset", func(t *testing.T) {
		gate := newGate(t)
		blob := encryptedDataset(t, gate)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(blob)
		}))
		defer server.Close()

		adapter := dataset.New(dataset.Config{URL: server.URL}, gate, time.Second)

		records, err := adapter.FetchMarkets(context.Background())
		require.NoError(t, err)
		require.Len(t, records, 1)
	})

	t.Run("should fail closed on a dataset encrypted under another key", func(t *testing.T) {
		publisher := newGate(t)
		path := filepath.Join(t.TempDir(), "dataset.bin")
		require.NoError(t, os.WriteFile(path, encryptedDataset(t, publisher), 0o600))

		adapter := dataset.New(dataset.Config{Path: path}, newGate(t), time.Second)

		_, err := adapter.FetchMarkets(context.Background())
		require.ErrorIs(t, err, domain.ErrDecryptionFailed)
	})

	t.Run("should fail when the file is missing", func(t *testing.T) {
		adapter := dataset.New(dataset.Config{
			Path: filepath.Join(t.TempDir(), "absent.bin"),
		}, newGate(t), time.Second)

		_, err := adapter.FetchMarkets(context.Background())
		require.Error(t, err)
	})
}
