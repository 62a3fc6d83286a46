package config

const (
	defaultConfigPath              = "~/.config/strmsync/config.toml"
	defaultLibraryDir              = "~/media/strm"
	defaultStateDir                = "~/.local/share/strmsync"
	defaultLogDir                  = "~/.local/share/strmsync/logs"
	defaultUserAgent               = "strmsync/dev"
	defaultRequestDelayMS          = 250
	defaultProviderTimeoutSeconds  = 30
	defaultProviderMaxRetries      = 3
	defaultBreakerFailures         = 5
	defaultTMDBLanguage            = "en-US"
	defaultTMDBBaseURL             = "https://api.themoviedb.org/3"
	defaultParallelism             = 4
	defaultBatchSize               = 10
	defaultMoviesDir               = "Movies"
	defaultSeriesDir               = "Series"
	defaultOrphanMaxRatio          = 0.2
	defaultOrphanMinFiles          = 10
	defaultScheduleIntervalMinutes = 360
	defaultMetadataMaxConcurrent   = 3
	defaultMetadataRPS             = 4.0
	defaultLookupTimeoutSeconds    = 5
	defaultCacheMaxAgeDays         = 30
	defaultYearTolerance           = 2
	defaultShortTitleLength        = 3
	defaultLongTitleLength         = 15
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultLogRetentionDays        = 30
	defaultLogMaxSizeMB            = 50
	defaultLogMaxBackups           = 5
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir: defaultLibraryDir,
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
		},
		Provider: Provider{
			UserAgent:       defaultUserAgent,
			RequestDelayMS:  defaultRequestDelayMS,
			TimeoutSeconds:  defaultProviderTimeoutSeconds,
			MaxRetries:      defaultProviderMaxRetries,
			BreakerFailures: defaultBreakerFailures,
		},
		TMDB: TMDB{
			Language: defaultTMDBLanguage,
			BaseURL:  defaultTMDBBaseURL,
		},
		Sync: Sync{
			Incremental:             true,
			Parallelism:             defaultParallelism,
			BatchSize:               defaultBatchSize,
			FolderMode:              FolderModeSingle,
			MoviesDir:               defaultMoviesDir,
			SeriesDir:               defaultSeriesDir,
			SmartSkip:               true,
			OrphanMaxRatio:          defaultOrphanMaxRatio,
			OrphanMinFiles:          defaultOrphanMinFiles,
			ScheduleIntervalMinutes: defaultScheduleIntervalMinutes,
		},
		Metadata: Metadata{
			Enabled:              true,
			MaxConcurrent:        defaultMetadataMaxConcurrent,
			RequestsPerSecond:    defaultMetadataRPS,
			LookupTimeoutSeconds: defaultLookupTimeoutSeconds,
			CacheMaxAgeDays:      defaultCacheMaxAgeDays,
			YearTolerance:        defaultYearTolerance,
			ShortTitleLength:     defaultShortTitleLength,
			LongTitleLength:      defaultLongTitleLength,
			RetryWithoutYear:     true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
			MaxSizeMB:     defaultLogMaxSizeMB,
			MaxBackups:    defaultLogMaxBackups,
		},
	}
}
