package config

// Config is the root configuration structure
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Registry RegistryConfig  `yaml:"registry"`
	Feeds    []FeedConfig    `yaml:"feeds"`
	Adapters []AdapterConfig `yaml:"adapters"`
	Pairs    []PairConfig    `yaml:"pairs"`
	Metrics  MetricsConfig   `yaml:"metrics"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the quote API server
type ServerConfig struct {
	HTTP HTTPConfig `yaml:"http"`
}

// HTTPConfig configures the HTTP server
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// RegistryConfig configures the aggregator registry
type RegistryConfig struct {
	Owner string `yaml:"owner"` // administrative account for registry and instances
}

// FeedConfig configures one external feed store
type FeedConfig struct {
	Name         string                    `yaml:"name"`
	Type         string                    `yaml:"type"`           // "http" or "static"
	RateLimitRPS float64                   `yaml:"rate_limit_rps"` // http only, 0 = unlimited
	Endpoints    map[string]EndpointConfig `yaml:"endpoints"`      // http: feed key -> endpoint
	Prices       map[string]PinnedPrice    `yaml:"prices"`         // static: feed key -> pinned price
}

// EndpointConfig describes one HTTP price series
type EndpointConfig struct {
	URL       string `yaml:"url"`
	PricePath string `yaml:"price_path"`
	TimePath  string `yaml:"time_path"`
	Decimals  int32  `yaml:"decimals"`
}

// PinnedPrice is a static price value at a native precision
type PinnedPrice struct {
	Price    string `yaml:"price"`
	Decimals int32  `yaml:"decimals"`
}

// AdapterConfig configures one quote source adapter
type AdapterConfig struct {
	Name     string            `yaml:"name"`
	Type     string            `yaml:"type"`      // "feed" or "getter"
	Feed     string            `yaml:"feed"`      // name of the backing feed store
	PairKeys map[string]string `yaml:"pair_keys"` // "BASE/QUOTE" -> feed key
}

// PairConfig configures one pair aggregator
type PairConfig struct {
	Base            string   `yaml:"base"`
	Quote           string   `yaml:"quote"`
	MaxDeviationBps uint32   `yaml:"max_deviation_bps"`
	Adapters        []string `yaml:"adapters"`
}

// MetricsConfig configures Prometheus metrics
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures logging output
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}
