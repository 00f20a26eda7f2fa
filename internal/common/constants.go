package common

// Environment variable keys
const (
	EnvConfigFile        = "CONFIG_FILE"
	EnvHTTPPort          = "HTTP_PORT"
	EnvLocale            = "LOCALE"
	EnvCatalogPath       = "CATALOG_PATH"
	EnvModelBackend      = "MODEL_BACKEND"
	EnvModelPath         = "MODEL_PATH"
	EnvFallbackModelPath = "FALLBACK_MODEL_PATH"
	EnvPythonPath        = "PYTHON_PATH"
	EnvModelServerURL    = "MODEL_SERVER_URL"
	EnvModelServerPort   = "MODEL_SERVER_PORT"
	EnvPredictTimeout    = "PREDICT_TIMEOUT"
	EnvRiskMediumAbove   = "RISK_MEDIUM_ABOVE"
	EnvRiskHighAbove     = "RISK_HIGH_ABOVE"
	EnvLogLevel          = "LOG_LEVEL"
	EnvLogFormat         = "LOG_FORMAT"
)

// Model backends
const (
	BackendPython = "python"
	BackendJSON   = "json"
	BackendRemote = "remote"
)

// Log formats
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Configuration defaults
const (
	DefaultHTTPPort        = 8501
	DefaultModelServerPort = 8601
	DefaultLocale          = "vi"
	DefaultModelBackend    = BackendPython
	DefaultModelPath       = "stroke_model.pkl"
	DefaultModelServerURL  = "http://localhost:8601"
	DefaultRiskMediumAbove = 20.0
	DefaultRiskHighAbove   = 50.0
	DefaultLogLevel        = "info"
	DefaultLogFormat       = LogFormatConsole
)

// Form defaults
const (
	DefaultAge     = 60
	DefaultBMI     = 22.5
	DefaultGlucose = 90.0
	MinAge         = 1
	MaxAge         = 120
)

// Validation constants
const (
	MinPort = 1024
	MaxPort = 65535
)
