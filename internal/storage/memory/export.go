package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/m3ts/referee/pkg/core"
)

// MatchExport is the root JSON structure
type MatchExport struct {
	MatchID     string      `json:"matchId"`
	PlayerLeft  string      `json:"playerLeft"`
	PlayerRight string      `json:"playerRight"`
	StartTime   time.Time   `json:"startTime"`
	EndTime     time.Time   `json:"endTime"`
	FirstServer core.Side   `json:"firstServer"`
	GameLength  int         `json:"gameLength"`
	GamesLeft   int         `json:"gamesLeft"`
	GamesRight  int         `json:"gamesRight"`
	Points      []PointJSON `json:"points"`
}

// PointJSON is one decided point
type PointJSON struct {
	Game         int               `json:"game"`
	Kind         core.DecisionKind `json:"kind"`
	Reason       string            `json:"reason,omitempty"`
	Winner       core.Side         `json:"winner"`
	Score        [2]int            `json:"score"`
	Server       core.Side         `json:"server"`
	Striker      core.Side         `json:"striker"`
	BallSide     core.Side         `json:"ballSide"`
	Strikes      int               `json:"strikes"`
	Bounces      int               `json:"bounces"`
	AudioBounces int               `json:"audioBounces"`
	DurationMs   int64             `json:"durationMs"`
	DecidedAt    time.Time         `json:"decidedAt"`
	Traces       []core.TrackTrace `json:"traces,omitempty"`
}

// exportFilename builds "<left>_vs_<right>_<start>.json[.gz]" with unsafe characters replaced.
func exportFilename(m *core.Match, compress bool) string {
	clean := strings.NewReplacer(" ", "_", ":", "_", "/", "_", "\\", "_")
	left, right := m.PlayerLeft, m.PlayerRight
	if left == "" {
		left = "left"
	}
	if right == "" {
		right = "right"
	}
	name := clean.Replace(left + "_vs_" + right)
	timestamp := m.StartTime.Format("20060102_150405")
	if compress {
		return fmt.Sprintf("%s_%s.json.gz", name, timestamp)
	}
	return fmt.Sprintf("%s_%s.json", name, timestamp)
}

// exportJSON writes the match data to OutputDir. Callers hold b.mu.
func (b *Backend) exportJSON() error {
	export := b.buildExport()
	outputPath := filepath.Join(b.cfg.OutputDir, exportFilename(b.match, b.cfg.CompressOutput))

	if b.cfg.OutputDir != "" {
		if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() MatchExport {
	m := b.match
	export := MatchExport{
		MatchID:     m.ID.String(),
		PlayerLeft:  m.PlayerLeft,
		PlayerRight: m.PlayerRight,
		StartTime:   m.StartTime,
		EndTime:     m.EndTime,
		FirstServer: m.FirstServer,
		GameLength:  m.GameLength,
		GamesLeft:   m.GamesLeft,
		GamesRight:  m.GamesRight,
		Points:      make([]PointJSON, 0, len(b.points)),
	}
	for _, p := range b.points {
		export.Points = append(export.Points, PointJSON{
			Game:         p.Game,
			Kind:         p.Kind,
			Reason:       p.Reason,
			Winner:       p.Winner,
			Score:        [2]int{p.ScoreLeft, p.ScoreRight},
			Server:       p.Server,
			Striker:      p.Striker,
			BallSide:     p.BallSide,
			Strikes:      p.Strikes,
			Bounces:      p.Bounces,
			AudioBounces: p.AudioBounce,
			DurationMs:   p.Duration.Milliseconds(),
			DecidedAt:    p.DecidedAt,
			Traces:       p.Traces,
		})
	}
	return export
}

func writeJSON(path string, data MatchExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func writeGzipJSON(path string, data MatchExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}
