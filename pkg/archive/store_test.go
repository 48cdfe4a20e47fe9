package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/triage/pkg/router"
	"github.com/zen-systems/triage/pkg/schema"
)

func TestStoreObjectIsContentAddressed(t *testing.T) {
	st, err := NewStore(t.TempDir())
	require.NoError(t, err)

	a, err := st.StoreObject(map[string]string{"k": "v"}, "test")
	require.NoError(t, err)
	b, err := st.StoreObject(map[string]string{"k": "v"}, "test")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a.SHA256, 64)

	_, err = os.Stat(filepath.Join(st.BasePath, "objects", a.SHA256[:2], a.SHA256+".json"))
	assert.NoError(t, err)

	var got map[string]string
	require.NoError(t, st.LoadObject(a, &got))
	assert.Equal(t, "v", got["k"])
}

func TestOverridesRoundTripInOrder(t *testing.T) {
	st, err := NewStore(t.TempDir())
	require.NoError(t, err)

	empty, err := st.Overrides()
	require.NoError(t, err)
	assert.Empty(t, empty)

	ts := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	recs := []router.OverrideRecord{
		{RequestID: "r1", OriginalQuadrant: schema.QuadrantSchedule, CorrectedQuadrant: schema.QuadrantDoFirst, Timestamp: ts},
		{RequestID: "r2", OriginalQuadrant: schema.QuadrantDelegate, CorrectedQuadrant: schema.QuadrantEliminate, WasEscalated: true, Timestamp: ts.Add(time.Minute)},
	}
	for _, rec := range recs {
		_, err := st.AppendOverride(rec)
		require.NoError(t, err)
	}

	got, err := st.Overrides()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r1", got[0].RequestID)
	assert.Equal(t, schema.QuadrantDoFirst, got[0].CorrectedQuadrant)
	assert.True(t, got[1].WasEscalated)
	assert.True(t, got[1].Timestamp.Equal(ts.Add(time.Minute)))
}

func TestLoadObjectRejectsShortRef(t *testing.T) {
	st, err := NewStore(t.TempDir())
	require.NoError(t, err)
	var v any
	assert.Error(t, st.LoadObject(Ref{SHA256: "a"}, &v))
}
