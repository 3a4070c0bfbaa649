package archive

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairdeck/internal/codec"
	"fairdeck/internal/fairness"
	"fairdeck/internal/state"
)

func TestRecordAndListByRoom(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "audits.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	payload := &codec.AuditMsg{
		Type:          "audit",
		MasterSeedHex: "ab12",
		Deck:          []string{"A♠", "K♠"},
		DeckHash:      "cd34",
		Reveals: []fairness.Reveal{
			{PID: "alice", Seed: "s", Salt: "t"},
		},
		Transcript: &state.Transcript{
			Variant:          state.VariantTexas,
			Holes:            map[string][]int{"alice": {0, 1}},
			CommunityIndexes: []int{},
		},
	}

	require.NoError(t, store.Record(ctx, "ROOM01", payload))
	require.NoError(t, store.Record(ctx, "ROOM01", payload))
	require.NoError(t, store.Record(ctx, "OTHER1", payload))

	audits, err := store.ListByRoom(ctx, "ROOM01")
	require.NoError(t, err)
	require.Len(t, audits, 2)
	assert.Equal(t, "ROOM01", audits[0].RoomCode)
	assert.Equal(t, "ab12", audits[0].MasterSeedHex)
	assert.Equal(t, "cd34", audits[0].DeckHash)
	assert.Contains(t, audits[0].RevealsJSON, `"alice"`)
	assert.Contains(t, audits[0].TranscriptJSON, `"holes"`)
	assert.False(t, audits[0].CreatedAt.IsZero())

	empty, err := store.ListByRoom(ctx, "NONE")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
