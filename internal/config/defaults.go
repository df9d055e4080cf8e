package config

const (
	defaultDataDir   = "~/.local/share/applyq/data"
	defaultOutputDir = "~/.local/share/applyq/output"
	defaultLogDir    = "~/.local/share/applyq/logs"
	defaultAPIBind   = "127.0.0.1:7519"

	defaultSearchBaseURL        = "https://jsearch.p.rapidapi.com/search"
	defaultSearchDatePosted     = "week"
	defaultSearchNumPages       = 1
	defaultSearchMinScore       = 65
	defaultSearchSortBy         = "score"
	defaultSearchTimeoutSeconds = 120

	defaultMinJDLines    = 10
	defaultFullTierScore = 80

	defaultGeneratorBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultGeneratorModel          = "google/gemini-3-flash-preview"
	defaultGeneratorTimeoutSeconds = 600

	defaultNotifyRequestTimeout = 10

	defaultErrorMessageLimit  = 500
	defaultProgressBufferSize = 64

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Search: Search{
			BaseURL:        defaultSearchBaseURL,
			DatePosted:     defaultSearchDatePosted,
			NumPages:       defaultSearchNumPages,
			MinScore:       defaultSearchMinScore,
			SortBy:         defaultSearchSortBy,
			MinJDLines:     defaultMinJDLines,
			FullTierScore:  defaultFullTierScore,
			TimeoutSeconds: defaultSearchTimeoutSeconds,
		},
		Generator: Generator{
			BaseURL:        defaultGeneratorBaseURL,
			Model:          defaultGeneratorModel,
			TimeoutSeconds: defaultGeneratorTimeoutSeconds,
		},
		JDCache: JDCache{
			Enabled: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Search:         true,
			Generation:     true,
			Errors:         true,
		},
		Workflow: Workflow{
			ErrorMessageLimit:  defaultErrorMessageLimit,
			ProgressBufferSize: defaultProgressBufferSize,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
