package model

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Match{},
	&Point{},
	&TrackTrace{},
}

////////////////////////
// MATCH DATA
////////////////////////

// Match is one recorded match. IDs are the string form of the core match UUID.
type Match struct {
	ID          string       `json:"id" gorm:"primaryKey;size:36"`
	PlayerLeft  string       `json:"playerLeft" gorm:"size:127"`
	PlayerRight string       `json:"playerRight" gorm:"size:127"`
	StartTime   time.Time    `json:"startTime" gorm:"index:idx_match_start_time"`
	EndTime     sql.NullTime `json:"endTime"`
	FirstServer string       `json:"firstServer" gorm:"size:8"`
	GameLength  int          `json:"gameLength"`
	GamesLeft   int          `json:"gamesLeft"`
	GamesRight  int          `json:"gamesRight"`
}

func (*Match) TableName() string {
	return "matches"
}

// Point is one referee decision.
type Point struct {
	ID           uint         `json:"id" gorm:"primarykey"`
	MatchID      string       `json:"matchId" gorm:"size:36;index:idx_point_match_id"`
	Game         int          `json:"game"`
	Kind         string       `json:"kind" gorm:"size:16"`
	Reason       string       `json:"reason" gorm:"size:64"`
	Winner       string       `json:"winner" gorm:"size:8"`
	ScoreLeft    int          `json:"scoreLeft"`
	ScoreRight   int          `json:"scoreRight"`
	Strikes      int          `json:"strikes"`
	Bounces      int          `json:"bounces"`
	AudioBounces int          `json:"audioBounces"`
	BallSide     string       `json:"ballSide" gorm:"size:8"`
	Striker      string       `json:"striker" gorm:"size:8"`
	Server       string       `json:"server" gorm:"size:8"`
	DurationMs   int64        `json:"durationMs"`
	DecidedAt    time.Time    `json:"decidedAt" gorm:"index:idx_point_decided_at"`
	Traces       []TrackTrace `json:"traces" gorm:"foreignKey:PointID;constraint:OnDelete:CASCADE"`
}

func (*Point) TableName() string {
	return "points"
}

// TrackTrace holds the detections of one track during a point as JSON.
type TrackTrace struct {
	ID          uint           `json:"id" gorm:"primarykey"`
	PointID     uint           `json:"pointId" gorm:"index:idx_tracktrace_point_id"`
	TrackID     string         `json:"trackId" gorm:"size:36"`
	Length      int            `json:"length"`
	AvgVelocity float64        `json:"avgVelocity"`
	Detections  datatypes.JSON `json:"detections"`
}

func (*TrackTrace) TableName() string {
	return "track_traces"
}
