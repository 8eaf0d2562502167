package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3ts/referee/internal/config"
	"github.com/m3ts/referee/internal/storage"
	"github.com/m3ts/referee/pkg/core"
)

// Compile-time interface checks
var (
	_ storage.Backend  = (*Backend)(nil)
	_ storage.Exporter = (*Backend)(nil)
)

func testMatch() *core.Match {
	return &core.Match{
		ID:          uuid.New(),
		PlayerLeft:  "Anna Berg",
		PlayerRight: "Ben",
		StartTime:   time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC),
		FirstServer: core.SideRight,
		GameLength:  11,
	}
}

func TestRecordPoint_WithoutMatch(t *testing.T) {
	b := New(config.MemoryConfig{})
	assert.Error(t, b.RecordPoint(&core.PointRecord{}))
	assert.Error(t, b.EndMatch(testMatch()))
}

func TestStartMatch_ResetsPoints(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	require.NoError(t, b.StartMatch(testMatch()))
	require.NoError(t, b.RecordPoint(&core.PointRecord{Winner: core.SideLeft}))
	assert.Len(t, b.Points(), 1)

	require.NoError(t, b.StartMatch(testMatch()))
	assert.Empty(t, b.Points())
}

func TestExportFilename(t *testing.T) {
	m := testMatch()
	assert.Equal(t, "Anna_Berg_vs_Ben_20240501_123000.json", exportFilename(m, false))
	assert.Equal(t, "Anna_Berg_vs_Ben_20240501_123000.json.gz", exportFilename(m, true))

	m.PlayerLeft, m.PlayerRight = "", "a/b"
	assert.Equal(t, "left_vs_a_b_20240501_123000.json", exportFilename(m, false))
}

func TestEndMatch_ExportsJSON(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	b := New(config.MemoryConfig{OutputDir: dir})
	require.NoError(t, b.Init())

	m := testMatch()
	require.NoError(t, b.StartMatch(m))
	require.NoError(t, b.RecordPoint(&core.PointRecord{
		MatchID:     m.ID,
		Game:        1,
		Kind:        core.DecisionFault,
		Reason:      "bounce_on_own_side",
		Winner:      core.SideLeft,
		ScoreLeft:   1,
		AudioBounce: 2,
		Duration:    1500 * time.Millisecond,
		Traces:      []core.TrackTrace{{TrackID: uuid.New(), Points: []core.TracePoint{{DetectionID: 7, X: 1, Y: 2}}}},
	}))
	m.GamesLeft = 3
	m.EndTime = m.StartTime.Add(30 * time.Minute)
	require.NoError(t, b.EndMatch(m))
	require.NoError(t, b.Close())

	path := b.ExportedFilePath()
	assert.Equal(t, filepath.Join(dir, "Anna_Berg_vs_Ben_20240501_123000.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var export MatchExport
	require.NoError(t, json.Unmarshal(data, &export))

	assert.Equal(t, m.ID.String(), export.MatchID)
	assert.Equal(t, 3, export.GamesLeft)
	assert.Equal(t, core.SideRight, export.FirstServer)
	require.Len(t, export.Points, 1)
	p := export.Points[0]
	assert.Equal(t, core.DecisionFault, p.Kind)
	assert.Equal(t, core.SideLeft, p.Winner)
	assert.Equal(t, [2]int{1, 0}, p.Score)
	assert.Equal(t, int64(1500), p.DurationMs)
	assert.Equal(t, 2, p.AudioBounces)
	require.Len(t, p.Traces, 1)
	assert.Equal(t, uint64(7), p.Traces[0].Points[0].DetectionID)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "right", raw["firstServer"])
}

func TestEndMatch_ExportsGzip(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: true})

	m := testMatch()
	require.NoError(t, b.StartMatch(m))
	require.NoError(t, b.EndMatch(m))

	f, err := os.Open(b.ExportedFilePath())
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	var export MatchExport
	require.NoError(t, json.NewDecoder(gz).Decode(&export))
	assert.Equal(t, "Anna Berg", export.PlayerLeft)
	assert.NotNil(t, export.Points)
	assert.Empty(t, export.Points)
}
