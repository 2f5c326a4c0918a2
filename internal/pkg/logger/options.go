package logger

// Option modifies logger configuration
type Option func(*Config)

// WithLevel sets the log level
func WithLevel(level string) Option {
	return func(c *Config) { c.Level = level }
}

// WithFormat sets the log format (json or console)
func WithFormat(format string) Option {
	return func(c *Config) { c.Format = format }
}

// WithOutput sets the log output (console, file or both)
func WithOutput(output string) Option {
	return func(c *Config) { c.Output = output }
}

// WithFile sets the rotated file output
func WithFile(file FileConfig) Option {
	return func(c *Config) { c.File = file }
}

// WithFilename sets the log file name
func WithFilename(filename string) Option {
	return func(c *Config) { c.File.Filename = filename }
}

// WithCaller enables or disables caller information
func WithCaller(enabled bool) Option {
	return func(c *Config) { c.EnableCaller = enabled }
}

// WithStacktrace enables or disables stacktrace for error level
func WithStacktrace(enabled bool) Option {
	return func(c *Config) { c.EnableStacktrace = enabled }
}

// NewWithOptions creates a logger from DefaultConfig plus options
func NewWithOptions(opts ...Option) (*Logger, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return New(cfg)
}

// Development returns a colored console logger at debug level
func Development() (*Logger, error) {
	return NewWithOptions(
		WithLevel("debug"),
		WithFormat("console"),
		WithOutput("console"),
	)
}

// Production returns a JSON file logger at info level
func Production(filename string) (*Logger, error) {
	return NewWithOptions(
		WithLevel("info"),
		WithFormat("json"),
		WithOutput("file"),
		WithFilename(filename),
	)
}
