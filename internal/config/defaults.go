package config

const (
	defaultDataDir                = "~/.local/share/vidpress/data"
	defaultLogDir                 = "~/.local/share/vidpress/logs"
	defaultStorageEndpoint        = "localhost:9000"
	defaultStorageBucket          = "vidpress-media"
	defaultChunkThresholdMiB      = 100
	defaultPartSizeMiB            = 50
	defaultUploadParallelism      = 1
	defaultMaxFileGiB             = 5
	defaultTranscoderTimeout      = 30
	defaultTranscriptionLanguage  = "en"
	defaultPollIntervalSeconds    = 2
	defaultPollMaxAttempts        = 30
	defaultProbeTimeoutSeconds    = 5
	defaultNotifyRequestTimeout   = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultTranscriptionDiarize   = true
	defaultTranscriptionCaptions  = true
	defaultThumbnailAutoAcceptSec = 0
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Storage: Storage{
			Endpoint: defaultStorageEndpoint,
			Bucket:   defaultStorageBucket,
		},
		Upload: Upload{
			ChunkThresholdMiB: defaultChunkThresholdMiB,
			PartSizeMiB:       defaultPartSizeMiB,
			Parallelism:       defaultUploadParallelism,
			MaxFileGiB:        defaultMaxFileGiB,
		},
		Transcoder: Transcoder{
			RequestTimeout: defaultTranscoderTimeout,
		},
		Transcription: Transcription{
			Language:            defaultTranscriptionLanguage,
			PollIntervalSeconds: defaultPollIntervalSeconds,
			MaxAttempts:         defaultPollMaxAttempts,
			Diarization:         defaultTranscriptionDiarize,
			Captions:            defaultTranscriptionCaptions,
		},
		Playback: Playback{
			ProbeTimeoutSeconds: defaultProbeTimeoutSeconds,
		},
		Thumbnail: Thumbnail{
			AutoAcceptAfterSeconds: defaultThumbnailAutoAcceptSec,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
