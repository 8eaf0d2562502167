// Package replay reads recorded detector input from JSON lines and plays it
// back into the pipeline with its original timing.
package replay

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/m3ts/referee/pkg/core"
)

// ErrInvalidFrame is returned for a line that cannot be replayed.
var ErrInvalidFrame = errors.New("invalid replay frame")

// Kind is the type of a replay record.
type Kind string

const (
	KindFrame       Kind = "frame"
	KindAudio       Kind = "audio"
	KindPointAdd    Kind = "point_add"
	KindPointDeduct Kind = "point_deduct"
	KindPause       Kind = "pause"
	KindResume      Kind = "resume"
	KindGesture     Kind = "gesture"
)

// maxLineSize bounds one JSON line; a frame rarely holds more than a few detections.
const maxLineSize = 1 << 20

// Record is one line of a replay file. T is the offset from the start of the
// recording in seconds.
type Record struct {
	Line       int                 `json:"-"`
	T          float64             `json:"t"`
	Kind       Kind                `json:"kind"`
	Detections []core.RawDetection `json:"detections,omitempty"`
	Side       *core.Side          `json:"side,omitempty"`
}

// Offset returns T as a duration.
func (r Record) Offset() time.Duration {
	return time.Duration(r.T * float64(time.Second))
}

// invalid wraps ErrInvalidFrame with the line number and a reason.
func invalid(line int, format string, args ...any) error {
	return fmt.Errorf("line %d: %w: %s", line, ErrInvalidFrame, fmt.Sprintf(format, args...))
}

// Parse reads every record from r. Blank lines and lines starting with # are
// skipped. Offsets must not decrease.
func Parse(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		records []Record
		last    float64
		line    int
	)
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		rec, err := parseLine(line, text)
		if err != nil {
			return nil, err
		}
		if rec.T < last {
			return nil, invalid(line, "offset %.3fs is before the previous record at %.3fs", rec.T, last)
		}
		last = rec.T
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("line %d: failed to read replay: %w", line+1, err)
	}
	return records, nil
}

func parseLine(line int, text string) (Record, error) {
	var rec Record
	dec := json.NewDecoder(strings.NewReader(text))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		return Record{}, invalid(line, "%v", err)
	}
	rec.Line = line

	if math.IsNaN(rec.T) || math.IsInf(rec.T, 0) || rec.T < 0 {
		return Record{}, invalid(line, "offset must be a non-negative number")
	}

	switch rec.Kind {
	case KindFrame:
		for i, d := range rec.Detections {
			if d.Radius <= 0 {
				return Record{}, invalid(line, "detection %d has radius %v", i, d.Radius)
			}
			if d.X < 0 || d.Y < 0 {
				return Record{}, invalid(line, "detection %d lies outside the frame", i)
			}
		}
	case KindPointAdd, KindPointDeduct:
		if rec.Side == nil {
			return Record{}, invalid(line, "%s needs a side", rec.Kind)
		}
		if *rec.Side != core.SideLeft && *rec.Side != core.SideRight {
			return Record{}, invalid(line, "%s side must be left or right, got %s", rec.Kind, *rec.Side)
		}
	case KindAudio, KindPause, KindResume, KindGesture:
	case "":
		return Record{}, invalid(line, "missing kind")
	default:
		return Record{}, invalid(line, "unknown kind %q", rec.Kind)
	}
	if rec.Kind != KindFrame && len(rec.Detections) > 0 {
		return Record{}, invalid(line, "%s cannot carry detections", rec.Kind)
	}
	return rec, nil
}
