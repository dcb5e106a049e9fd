package config

const (
	defaultDataRoot         = "~/.local/share/specgrid/spectra"
	defaultLogDir           = "~/.local/share/specgrid/logs"
	defaultArchiveBaseURL   = "https://data.sdss.org"
	defaultArchiveRelease   = 16
	defaultArchiveTimeout   = 120
	defaultArchiveUserAgent = "specgrid/dev"
	defaultMinRedshift      = 0.01
	defaultFetchWorkers     = 60
	defaultMinFileSize      = 60000
	defaultRetryAttempts    = 10
	defaultRetryIntervalMS  = 1000
	defaultResampleWorkers  = 8
	defaultGridStart        = 3000.0
	defaultGridStop         = 8000.0
	defaultGridStep         = 1.0
	defaultDiscardFraction  = 0.1
	defaultFailThreshold    = 1.0
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataRoot: defaultDataRoot,
			LogDir:   defaultLogDir,
		},
		Archive: Archive{
			BaseURL:        defaultArchiveBaseURL,
			Release:        defaultArchiveRelease,
			TimeoutSeconds: defaultArchiveTimeout,
			UserAgent:      defaultArchiveUserAgent,
		},
		Catalog: Catalog{
			MinRedshift: defaultMinRedshift,
			SortBySNR:   true,
		},
		Fetch: Fetch{
			Workers:         defaultFetchWorkers,
			MinFileSize:     defaultMinFileSize,
			RetryAttempts:   defaultRetryAttempts,
			RetryIntervalMS: defaultRetryIntervalMS,
		},
		Resample: Resample{
			Workers:         defaultResampleWorkers,
			GridStart:       defaultGridStart,
			GridStop:        defaultGridStop,
			GridStep:        defaultGridStep,
			DiscardFraction: defaultDiscardFraction,
		},
		Run: Run{
			FailThreshold: defaultFailThreshold,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
