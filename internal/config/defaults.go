package config

const (
	defaultUploadsDir        = "~/.local/share/streampack/uploads"
	defaultLogDir            = "~/.local/share/streampack/logs"
	defaultSQLitePath        = "~/.local/share/streampack/jobs.db"
	defaultAPIBind           = "127.0.0.1:7488"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLadderPolicy      = "extended"
	defaultLadderFloor       = 360
	defaultRotatedTierLimit  = 2
	defaultSegmentSeconds    = 4
	defaultThumbnailOffset   = "00:00:01"
	defaultThumbnailMaxWidth = 1280
	defaultTempDirName       = "temp"
	defaultStaleTempMaxAgeH  = 24
	defaultMaxConcurrentJobs = 0
	defaultPollInterval      = 5
	defaultMaxUploadMiB      = 4096
	defaultMinFreeMiB        = 512
	defaultRedisChannel      = "streampack:jobs"
	defaultRedisTTLHours     = 72
	defaultKafkaTopic        = "streampack.jobs"
	defaultMetricsPath       = "/metrics"

	// StoreFile persists one meta.json per job directory.
	StoreFile = "file"
	// StoreSQLite persists job records in a SQLite database.
	StoreSQLite = "sqlite"

	// EventsNone disables transition publication.
	EventsNone = "none"
	// EventsRedis publishes transitions to Redis.
	EventsRedis = "redis"
	// EventsKafka publishes transitions to Kafka.
	EventsKafka = "kafka"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			UploadsDir:    defaultUploadsDir,
			LogDir:        defaultLogDir,
			APIBind:       defaultAPIBind,
			AllowedOrigin: "*",
		},
		Transcoder: Transcoder{
			FFmpegBinary:      "ffmpeg",
			FFprobeBinary:     "ffprobe",
			VideoCodec:        "libx264",
			AudioCodec:        "aac",
			Preset:            "medium",
			SegmentSeconds:    defaultSegmentSeconds,
			ThumbnailOffset:   defaultThumbnailOffset,
			ThumbnailMaxWidth: defaultThumbnailMaxWidth,
		},
		Ladder: Ladder{
			Policy:           defaultLadderPolicy,
			Floor:            defaultLadderFloor,
			RotatedTierLimit: defaultRotatedTierLimit,
		},
		Preprocess: Preprocess{
			Enabled:          true,
			ProblematicTags:  []string{"mebx"},
			TempDirName:      defaultTempDirName,
			StaleTempMaxAgeH: defaultStaleTempMaxAgeH,
		},
		Workflow: Workflow{
			MaxConcurrentJobs: defaultMaxConcurrentJobs,
			PollInterval:      defaultPollInterval,
			MaxUploadMiB:      defaultMaxUploadMiB,
			MinFreeMiB:        defaultMinFreeMiB,
		},
		Store: Store{
			Backend:    StoreFile,
			SQLitePath: defaultSQLitePath,
		},
		Events: Events{
			Backend:       EventsNone,
			RedisChannel:  defaultRedisChannel,
			RedisTTLHours: defaultRedisTTLHours,
			KafkaTopic:    defaultKafkaTopic,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Metrics: Metrics{
			Enabled: true,
			Path:    defaultMetricsPath,
		},
	}
}
