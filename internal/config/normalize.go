package config

import (
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSubject()
	c.normalizeServer()
	c.normalizeQueue()
	c.normalizePanic()
	c.normalizeCoord()
	c.normalizeEscalation()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	for _, field := range []*string{&c.Paths.DataDir, &c.Paths.LogDir, &c.Paths.AudioDir} {
		expanded, err := expandPath(strings.TrimSpace(*field))
		if err != nil {
			return err
		}
		*field = expanded
	}
	return nil
}

func (c *Config) normalizeSubject() {
	c.Subject.ID = strings.TrimSpace(c.Subject.ID)
	c.Subject.Name = strings.TrimSpace(c.Subject.Name)
	c.Subject.Country = strings.ToUpper(strings.TrimSpace(c.Subject.Country))
}

func (c *Config) normalizeServer() {
	c.Server.BaseURL = strings.TrimRight(strings.TrimSpace(c.Server.BaseURL), "/")
	c.Server.APIToken = strings.TrimSpace(c.Server.APIToken)
	if c.Server.TimeoutSeconds <= 0 {
		c.Server.TimeoutSeconds = defaultServerTimeoutSeconds
	}
}

func (c *Config) normalizeQueue() {
	if c.Queue.MaxAttempts <= 0 {
		c.Queue.MaxAttempts = defaultQueueMaxAttempts
	}
	if c.Queue.FlushIntervalSeconds <= 0 {
		c.Queue.FlushIntervalSeconds = defaultFlushIntervalSeconds
	}
}

func (c *Config) normalizePanic() {
	if c.Panic.AudioMaxSeconds <= 0 {
		c.Panic.AudioMaxSeconds = defaultAudioMaxSeconds
	}
	if c.Panic.AudioMinFreeMB <= 0 {
		c.Panic.AudioMinFreeMB = defaultAudioMinFreeMB
	}
}

func (c *Config) normalizeCoord() {
	c.Coord.Bind = strings.TrimSpace(c.Coord.Bind)
	if c.Coord.Bind == "" {
		c.Coord.Bind = defaultCoordBind
	}
	c.Coord.APIToken = strings.TrimSpace(c.Coord.APIToken)
	c.Coord.NtfyTopic = strings.TrimSpace(c.Coord.NtfyTopic)
	if c.Coord.BatteryCriticalPercent <= 0 {
		c.Coord.BatteryCriticalPercent = defaultBatteryCriticalPercent
	}
	if c.Coord.SnapshotEscalations <= 0 {
		c.Coord.SnapshotEscalations = defaultSnapshotEscalations
	}
	if c.Coord.SnapshotActivity <= 0 {
		c.Coord.SnapshotActivity = defaultSnapshotActivity
	}
	if c.Coord.NtfyTimeoutSeconds <= 0 {
		c.Coord.NtfyTimeoutSeconds = defaultNtfyTimeoutSeconds
	}
}

func (c *Config) normalizeEscalation() {
	if c.Escalation.NormalThresholdMinutes <= 0 {
		c.Escalation.NormalThresholdMinutes = defaultNormalThresholdMinutes
	}
	if c.Escalation.CrisisThresholdMinutes <= 0 {
		c.Escalation.CrisisThresholdMinutes = defaultCrisisThresholdMinutes
	}
	if c.Escalation.ScanIntervalSeconds <= 0 {
		c.Escalation.ScanIntervalSeconds = defaultScanIntervalSeconds
	}
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
}
