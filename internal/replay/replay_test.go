package replay

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3ts/referee/internal/detector"
	"github.com/m3ts/referee/internal/referee"
	"github.com/m3ts/referee/pkg/core"
)

var (
	_ Detector = (*detector.Detector)(nil)
	_ Controls = (*referee.Referee)(nil)
)

const sample = `# warm-up
{"t": 0, "kind": "frame", "detections": [{"x": 150, "y": 250, "radius": 2.6}]}
{"t": 0.033, "kind": "frame"}

{"t": 0.05, "kind": "audio"}
{"t": 0.06, "kind": "point_add", "side": "left"}
{"t": 0.07, "kind": "point_deduct", "side": "right"}
{"t": 0.08, "kind": "pause"}
{"t": 0.09, "kind": "resume"}
{"t": 0.1, "kind": "gesture"}
`

func TestParse(t *testing.T) {
	records, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, records, 8)

	assert.Equal(t, KindFrame, records[0].Kind)
	assert.Equal(t, 2, records[0].Line)
	assert.Equal(t, []core.RawDetection{{X: 150, Y: 250, Radius: 2.6}}, records[0].Detections)
	assert.Empty(t, records[1].Detections)
	assert.Equal(t, 33*time.Millisecond, records[1].Offset())
	assert.Equal(t, 5, records[2].Line)
	require.NotNil(t, records[3].Side)
	assert.Equal(t, core.SideLeft, *records[3].Side)
	assert.Equal(t, core.SideRight, *records[4].Side)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  string
	}{
		{"not json", `{"t": 0, "kind": `, "line 1"},
		{"unknown kind", `{"t": 0, "kind": "serve"}`, "line 1"},
		{"missing kind", `{"t": 0}`, "line 1"},
		{"unknown field", `{"t": 0, "kind": "audio", "volume": 3}`, "line 1"},
		{"negative offset", `{"t": -1, "kind": "audio"}`, "line 1"},
		{"zero radius", `{"t": 0, "kind": "frame", "detections": [{"x": 1, "y": 1, "radius": 0}]}`, "line 1"},
		{"negative position", `{"t": 0, "kind": "frame", "detections": [{"x": -5, "y": 1, "radius": 2}]}`, "line 1"},
		{"missing side", `{"t": 0, "kind": "point_add"}`, "line 1"},
		{"edge side", `{"t": 0, "kind": "point_deduct", "side": "top"}`, "line 1"},
		{"bad side", `{"t": 0, "kind": "point_add", "side": "middle"}`, "line 1"},
		{"detections on audio", `{"t": 0, "kind": "audio", "detections": [{"x": 1, "y": 1, "radius": 2}]}`, "line 1"},
		{"time goes back", "{\"t\": 1, \"kind\": \"audio\"}\n{\"t\": 0.5, \"kind\": \"audio\"}", "line 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidFrame)
			assert.True(t, strings.HasPrefix(err.Error(), tt.line+":"), err.Error())
		})
	}
}

type call struct {
	name string
	ts   time.Time
	side core.Side
}

type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) add(c call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *recorder) OnObjectsDetected(raw []core.RawDetection, ts time.Time) {
	r.add(call{name: "frame", ts: ts})
}
func (r *recorder) OnAudioBounce(ts time.Time) { r.add(call{name: "audio", ts: ts}) }
func (r *recorder) ResetLeg() { r.add(call{name: "reset"}) }
func (r *recorder) OnPointAddition(side core.Side) { r.add(call{name: "add", side: side}) }
func (r *recorder) OnPointDeduction(side core.Side) { r.add(call{name: "deduct", side: side}) }
func (r *recorder) Pause() { r.add(call{name: "pause"}) }
func (r *recorder) Resume() { r.add(call{name: "resume"}) }
func (r *recorder) OnGestureDetected() { r.add(call{name: "gesture"}) }

func TestPlay_DeliversInOrder(t *testing.T) {
	records, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := &recorder{}
	p := &Player{Detector: rec, Controls: rec, Now: func() time.Time { return start }}
	require.NoError(t, p.Play(context.Background(), records))

	var names []string
	for _, c := range rec.calls {
		names = append(names, c.name)
	}
	// every control but pause restarts the point
	assert.Equal(t, []string{
		"frame", "frame", "audio",
		"reset", "add",
		"reset", "deduct",
		"pause",
		"reset", "resume",
		"reset", "gesture",
	}, names)
	assert.Equal(t, start, rec.calls[0].ts)
	assert.Equal(t, start.Add(33*time.Millisecond), rec.calls[1].ts)
	assert.Equal(t, start.Add(50*time.Millisecond), rec.calls[2].ts)
	assert.Equal(t, core.SideLeft, rec.calls[4].side)
	assert.Equal(t, core.SideRight, rec.calls[6].side)
}

func TestPlay_RealTime(t *testing.T) {
	records := []Record{
		{T: 0, Kind: KindAudio},
		{T: 0.05, Kind: KindAudio},
	}
	rec := &recorder{}
	p := &Player{Detector: rec, Speed: 1}

	begin := time.Now()
	require.NoError(t, p.Play(context.Background(), records))
	assert.GreaterOrEqual(t, time.Since(begin), 50*time.Millisecond)
	assert.Len(t, rec.calls, 2)
}

func TestPlay_Cancelled(t *testing.T) {
	records := []Record{
		{T: 0, Kind: KindAudio},
		{T: 10, Kind: KindAudio},
	}
	rec := &recorder{}
	p := &Player{Detector: rec, Speed: 1}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Play(ctx, records)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, rec.calls, 1)
}

func TestPlay_NilControls(t *testing.T) {
	side := core.SideLeft
	p := &Player{}
	assert.NoError(t, p.Play(context.Background(), []Record{
		{Kind: KindFrame},
		{Kind: KindPointAdd, Side: &side},
	}))
}
