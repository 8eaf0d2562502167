// Package config loads referee.cfg.json through viper and exposes typed views
// of its sections.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the name of the configuration file looked up in the config directory.
const FileName = "referee.cfg.json"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	DumpInterval time.Duration
	DumpPath     string
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	Type          string
	FlushInterval time.Duration
	Memory        MemoryConfig
	SQLite        SQLiteConfig
}

// InfluxConfig holds InfluxDB settings
type InfluxConfig struct {
	Enabled    bool
	URL        string
	Token      string
	Org        string
	Bucket     string
	BackupPath string
}

// WebsocketConfig holds the scoreboard connection settings
type WebsocketConfig struct {
	URL    string
	Secret string
}

// GraylogConfig holds the GELF log shipping settings
type GraylogConfig struct {
	Enabled bool
	Address string
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled        bool
	ServiceName    string
	BatchTimeout   time.Duration
	MetricInterval time.Duration
	Endpoint       string
	Insecure       bool
}

// Point is an image position in pixels.
type Point struct {
	X float64
	Y float64
}

// TableConfig holds the table corners as seen by the camera
type TableConfig struct {
	TopLeft      Point
	TopRight     Point
	BottomRight  Point
	BottomLeft   Point
	NetBottom    *Point // nil means the middle of the bottom edge
	BounceMargin float64
}

// RefereeConfig holds everything the detection pipeline needs
type RefereeConfig struct {
	Table           TableConfig
	FrameWidth      float64
	FrameHeight     float64
	Timeout         time.Duration
	AudioWindow     time.Duration
	OutOfFrameRatio float64
	OutOfFrameDelay time.Duration
	UseGesture      bool

	TrackerMaxGap    time.Duration
	TrackerMaxJumpPx float64
	TrackerMaxTracks int

	CameraDistanceMM float64
	DepthTolerance   float64
}

// MatchConfig describes the match to referee
type MatchConfig struct {
	Type        int
	GameLength  int
	ServeRule   int
	FirstServer string
	PlayerLeft  string
	PlayerRight string
}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./refereelogs")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.flushInterval", "1s")
	viper.SetDefault("storage.memory.outputDir", "./matches")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "1m")
	viper.SetDefault("storage.sqlite.dumpPath", "./matches/referee.db")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "referee")

	viper.SetDefault("influx.enabled", true)
	viper.SetDefault("influx.url", "http://localhost:8086")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "referee")
	viper.SetDefault("influx.bucket", "points")
	viper.SetDefault("influx.backupPath", "./matches/influx_backup.log.gz")

	viper.SetDefault("websocket.url", "ws://localhost:5000/ws")
	viper.SetDefault("websocket.secret", "")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "referee")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
	viper.SetDefault("otel.metricInterval", "30s")

	viper.SetDefault("frame.width", 1280)
	viper.SetDefault("frame.height", 720)
	viper.SetDefault("table.bounceMargin", 10)
	viper.SetDefault("detector.timeout", "2s")
	viper.SetDefault("detector.audioWindow", "150ms")
	viper.SetDefault("detector.outOfFrameRatio", 0.02)
	viper.SetDefault("referee.outOfFrameDelay", "1s")
	viper.SetDefault("referee.useGesture", false)
	viper.SetDefault("tracker.maxGap", "250ms")
	viper.SetDefault("tracker.maxJumpPx", 120)
	viper.SetDefault("tracker.maxTracks", 8)
	viper.SetDefault("camera.distanceMM", 1500)
	viper.SetDefault("camera.depthTolerance", 0.1)

	viper.SetDefault("match.type", 1)
	viper.SetDefault("match.gameLength", 11)
	viper.SetDefault("match.serveRule", 2)
	viper.SetDefault("match.firstServer", "left")
	viper.SetDefault("match.playerLeft", "")
	viper.SetDefault("match.playerRight", "")
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetStorageConfig returns the storage section.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type:          viper.GetString("storage.type"),
		FlushInterval: viper.GetDuration("storage.flushInterval"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
		},
	}
}

// GetInfluxConfig returns the influx section.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:    viper.GetBool("influx.enabled"),
		URL:        viper.GetString("influx.url"),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		Bucket:     viper.GetString("influx.bucket"),
		BackupPath: viper.GetString("influx.backupPath"),
	}
}

// GetWebsocketConfig returns the websocket section.
func GetWebsocketConfig() WebsocketConfig {
	return WebsocketConfig{
		URL:    viper.GetString("websocket.url"),
		Secret: viper.GetString("websocket.secret"),
	}
}

// GetGraylogConfig returns the graylog section.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetOTelConfig returns the otel section.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}

func getPoint(key string) Point {
	return Point{X: viper.GetFloat64(key + ".x"), Y: viper.GetFloat64(key + ".y")}
}

// GetRefereeConfig returns the table, frame, detector, tracker and camera sections.
func GetRefereeConfig() RefereeConfig {
	tc := TableConfig{
		TopLeft:      getPoint("table.topLeft"),
		TopRight:     getPoint("table.topRight"),
		BottomRight:  getPoint("table.bottomRight"),
		BottomLeft:   getPoint("table.bottomLeft"),
		BounceMargin: viper.GetFloat64("table.bounceMargin"),
	}
	if viper.IsSet("table.netBottom") {
		p := getPoint("table.netBottom")
		tc.NetBottom = &p
	}

	return RefereeConfig{
		Table:            tc,
		FrameWidth:       viper.GetFloat64("frame.width"),
		FrameHeight:      viper.GetFloat64("frame.height"),
		Timeout:          viper.GetDuration("detector.timeout"),
		AudioWindow:      viper.GetDuration("detector.audioWindow"),
		OutOfFrameRatio:  viper.GetFloat64("detector.outOfFrameRatio"),
		OutOfFrameDelay:  viper.GetDuration("referee.outOfFrameDelay"),
		UseGesture:       viper.GetBool("referee.useGesture"),
		TrackerMaxGap:    viper.GetDuration("tracker.maxGap"),
		TrackerMaxJumpPx: viper.GetFloat64("tracker.maxJumpPx"),
		TrackerMaxTracks: viper.GetInt("tracker.maxTracks"),
		CameraDistanceMM: viper.GetFloat64("camera.distanceMM"),
		DepthTolerance:   viper.GetFloat64("camera.depthTolerance"),
	}
}

// GetMatchConfig returns the match section.
func GetMatchConfig() MatchConfig {
	return MatchConfig{
		Type:        viper.GetInt("match.type"),
		GameLength:  viper.GetInt("match.gameLength"),
		ServeRule:   viper.GetInt("match.serveRule"),
		FirstServer: viper.GetString("match.firstServer"),
		PlayerLeft:  viper.GetString("match.playerLeft"),
		PlayerRight: viper.GetString("match.playerRight"),
	}
}
