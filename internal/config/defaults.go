package config

const (
	defaultDataDir                = "~/.local/share/beacon/data"
	defaultLogDir                 = "~/.local/share/beacon/logs"
	defaultAudioDir               = "~/.local/share/beacon/audio"
	defaultServerTimeoutSeconds   = 10
	defaultQueueMaxAttempts       = 3
	defaultFlushIntervalSeconds   = 30
	defaultAudioMaxSeconds        = 120
	defaultAudioMinFreeMB         = 64
	defaultCoordBind              = "127.0.0.1:7610"
	defaultBatteryCriticalPercent = 10
	defaultSnapshotEscalations    = 50
	defaultSnapshotActivity       = 25
	defaultNormalThresholdMinutes = 24 * 60
	defaultCrisisThresholdMinutes = 4 * 60
	defaultScanIntervalSeconds    = 300
	defaultNtfyTimeoutSeconds     = 10
	defaultLogFormat              = "text"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			LogDir:   defaultLogDir,
			AudioDir: defaultAudioDir,
		},
		Server: Server{
			TimeoutSeconds: defaultServerTimeoutSeconds,
		},
		Queue: Queue{
			MaxAttempts:          defaultQueueMaxAttempts,
			FlushIntervalSeconds: defaultFlushIntervalSeconds,
		},
		Panic: Panic{
			AudioMaxSeconds: defaultAudioMaxSeconds,
			AudioMinFreeMB:  defaultAudioMinFreeMB,
		},
		Coord: Coord{
			Bind:                   defaultCoordBind,
			BatteryCriticalPercent: defaultBatteryCriticalPercent,
			SnapshotEscalations:    defaultSnapshotEscalations,
			SnapshotActivity:       defaultSnapshotActivity,
			NtfyTimeoutSeconds:     defaultNtfyTimeoutSeconds,
		},
		Escalation: Escalation{
			NormalThresholdMinutes: defaultNormalThresholdMinutes,
			CrisisThresholdMinutes: defaultCrisisThresholdMinutes,
			ScanIntervalSeconds:    defaultScanIntervalSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
