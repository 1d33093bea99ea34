package internal

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	oneShot bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithOneShot makes Run process the current inbox once and exit instead of
// serving the watcher and HTTP API.
func WithOneShot() Option {
	return func(a *application) {
		a.oneShot = true
	}
}
