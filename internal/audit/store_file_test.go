package audit

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Append(ctx, validEvent("evt-1")))
	require.NoError(t, store.Append(ctx, validEvent("evt-2")))
	require.NoError(t, store.Append(ctx, validEvent("evt-3")))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	// Replay the chain: each record's hash must equal
	// sha256(previousChain + marshal(event)).
	var prevChain string
	var count int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec struct {
			Event
			Chain string `json:"chain"`
		}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))

		payload, err := json.Marshal(rec.Event)
		require.NoError(t, err)
		sum := sha256.Sum256(append([]byte(prevChain), payload...))
		assert.Equal(t, hex.EncodeToString(sum[:]), rec.Chain, "chain broken at record %d", count)

		prevChain = rec.Chain
		count++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, 3, count)
}

func TestFileStoreTamperDetectable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(context.Background(), validEvent("evt-1")))
	require.NoError(t, store.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(raw, &rec))
	rec["subject_id"] = "someone-else"
	tampered, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(tampered, '\n'), 0o600))

	// Re-derive the expected chain over the edited record: it no longer
	// matches the stored value.
	edited, err := os.ReadFile(path)
	require.NoError(t, err)
	var check struct {
		Event
		Chain string `json:"chain"`
	}
	require.NoError(t, json.Unmarshal(edited, &check))
	payload, err := json.Marshal(check.Event)
	require.NoError(t, err)
	sum := sha256.Sum256(payload)
	assert.NotEqual(t, hex.EncodeToString(sum[:]), check.Chain)
}
