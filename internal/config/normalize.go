package config

import (
	"fmt"
	"runtime"
	"strings"
)

const maxDefaultWorkers = 4

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTranscoder()
	c.normalizeLadder()
	c.normalizePreprocess()
	c.normalizeWorkflow()
	c.normalizeEvents()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.UploadsDir, err = expandPath(c.Paths.UploadsDir); err != nil {
		return fmt.Errorf("paths.uploads_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = StoreFile
	}
	if strings.TrimSpace(c.Store.SQLitePath) == "" {
		c.Store.SQLitePath = defaultSQLitePath
	}
	if c.Store.SQLitePath, err = expandPath(c.Store.SQLitePath); err != nil {
		return fmt.Errorf("store.sqlite_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeTranscoder() {
	c.Transcoder.FFmpegBinary = strings.TrimSpace(c.Transcoder.FFmpegBinary)
	c.Transcoder.FFprobeBinary = strings.TrimSpace(c.Transcoder.FFprobeBinary)
	if strings.TrimSpace(c.Transcoder.VideoCodec) == "" {
		c.Transcoder.VideoCodec = "libx264"
	}
	if strings.TrimSpace(c.Transcoder.AudioCodec) == "" {
		c.Transcoder.AudioCodec = "aac"
	}
	if c.Transcoder.SegmentSeconds <= 0 {
		c.Transcoder.SegmentSeconds = defaultSegmentSeconds
	}
	if strings.TrimSpace(c.Transcoder.ThumbnailOffset) == "" {
		c.Transcoder.ThumbnailOffset = defaultThumbnailOffset
	}
}

func (c *Config) normalizeLadder() {
	c.Ladder.Policy = strings.ToLower(strings.TrimSpace(c.Ladder.Policy))
	if c.Ladder.Policy == "" {
		c.Ladder.Policy = defaultLadderPolicy
	}
	if c.Ladder.RotatedTierLimit <= 0 {
		c.Ladder.RotatedTierLimit = defaultRotatedTierLimit
	}
}

func (c *Config) normalizePreprocess() {
	tags := make([]string, 0, len(c.Preprocess.ProblematicTags))
	for _, tag := range c.Preprocess.ProblematicTags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	c.Preprocess.ProblematicTags = tags
	if strings.TrimSpace(c.Preprocess.TempDirName) == "" {
		c.Preprocess.TempDirName = defaultTempDirName
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.MaxConcurrentJobs <= 0 {
		workers := runtime.GOMAXPROCS(0)
		if workers > maxDefaultWorkers {
			workers = maxDefaultWorkers
		}
		if workers < 1 {
			workers = 1
		}
		c.Workflow.MaxConcurrentJobs = workers
	}
	if c.Workflow.PollInterval <= 0 {
		c.Workflow.PollInterval = defaultPollInterval
	}
}

func (c *Config) normalizeEvents() {
	c.Events.Backend = strings.ToLower(strings.TrimSpace(c.Events.Backend))
	if c.Events.Backend == "" {
		c.Events.Backend = EventsNone
	}
	if strings.TrimSpace(c.Events.RedisChannel) == "" {
		c.Events.RedisChannel = defaultRedisChannel
	}
	if strings.TrimSpace(c.Events.KafkaTopic) == "" {
		c.Events.KafkaTopic = defaultKafkaTopic
	}
	brokers := make([]string, 0, len(c.Events.KafkaBrokers))
	for _, broker := range c.Events.KafkaBrokers {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	c.Events.KafkaBrokers = brokers
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if strings.TrimSpace(c.Metrics.Path) == "" {
		c.Metrics.Path = defaultMetricsPath
	}
}
