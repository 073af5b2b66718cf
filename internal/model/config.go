package model

import "time"

// Config holds the complete veille configuration
type Config struct {
	HTTP        HTTPConfig          `yaml:"http" mapstructure:"http"`
	Cache       CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Sources     SourcesConfig       `yaml:"sources" mapstructure:"sources"`
	Scoring     ScoringConfig       `yaml:"scoring" mapstructure:"scoring"`
	Refine      RefineConfig        `yaml:"refine" mapstructure:"refine"`
	Concurrency ConcurrencyConfig   `yaml:"concurrency" mapstructure:"concurrency"`
	LLM         LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Profiles    map[string][]string `yaml:"profiles" mapstructure:"profiles"`
}

// HTTPConfig controls outbound requests made by adapters
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// CacheConfig selects and tunes the result store
type CacheConfig struct {
	Backend   string        `yaml:"backend" mapstructure:"backend"` // sqlite, file, memory, none
	Path      string        `yaml:"path" mapstructure:"path"`
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
}

// SourcesConfig controls which adapters run and how they filter
type SourcesConfig struct {
	Enabled      map[string]bool `yaml:"enabled" mapstructure:"enabled"`
	MaxResults   int             `yaml:"max_results" mapstructure:"max_results"`
	ExcludeTerms []string        `yaml:"exclude_terms" mapstructure:"exclude_terms"`
	NewsWindow   string          `yaml:"news_window,omitempty" mapstructure:"news_window"` // e.g. "7d"
}

// ScoringConfig carries the empirically chosen relevance constants
type ScoringConfig struct {
	Weights       map[string]float64 `yaml:"weights" mapstructure:"weights"`
	DefaultWeight float64            `yaml:"default_weight" mapstructure:"default_weight"`
	Boost         float64            `yaml:"boost" mapstructure:"boost"`
	Threshold     float64            `yaml:"threshold" mapstructure:"threshold"`
	Required      []string           `yaml:"required" mapstructure:"required"`
}

// RefineConfig controls the secondary query round
type RefineConfig struct {
	Enabled bool     `yaml:"enabled" mapstructure:"enabled"`
	TopN    int      `yaml:"top_n" mapstructure:"top_n"`
	Exclude []string `yaml:"exclude" mapstructure:"exclude"`
	Sources []string `yaml:"sources" mapstructure:"sources"`
}

// ConcurrencyConfig controls adapter fan-out and pacing
type ConcurrencyConfig struct {
	Parallel          bool    `yaml:"parallel" mapstructure:"parallel"`
	Workers           int     `yaml:"workers" mapstructure:"workers"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// LLMConfig selects the summarizer provider
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, gemini, none
	Model       string  `yaml:"model,omitempty" mapstructure:"model"`
	APIKey      string  `yaml:"-" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// Adapter identifiers
const (
	AdapterNews       = "news"
	AdapterArxiv      = "arxiv"
	AdapterDOAJ       = "doaj"
	AdapterSemantic   = "semantic"
	AdapterGoogle     = "google"
	AdapterConsensus  = "consensus"
	AdapterPerplexity = "perplexity"
)

// FreeAdapters need no credentials and are the only ones used in fast mode
var FreeAdapters = []string{AdapterNews, AdapterArxiv, AdapterDOAJ, AdapterSemantic}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:       20 * time.Second,
			UserAgent:     "veille/0.3 (+https://github.com/ppiankov/veille)",
			MaxBodyBytes:  5_000_000,
			RespectRobots: true,
		},
		Cache: CacheConfig{
			Backend:   "sqlite",
			Path:      "", // resolved under the XDG data dir
			TTL:       24 * time.Hour,
			MemoryTTL: 10 * time.Minute,
		},
		Sources: SourcesConfig{
			Enabled: map[string]bool{
				AdapterNews:       true,
				AdapterArxiv:      true,
				AdapterDOAJ:       true,
				AdapterSemantic:   true,
				AdapterGoogle:     false,
				AdapterConsensus:  false,
				AdapterPerplexity: false,
			},
			MaxResults:   20,
			ExcludeTerms: []string{"co2", "carbon capture", "climate"},
		},
		Scoring: ScoringConfig{
			Weights: map[string]float64{
				"finance":        3,
				"fraude":         3,
				"banque":         2,
				"investissement": 2,
				"cryptomonnaie":  2,
				"marché":         2,
				"blockchain":     2,
				"agentique":      4,
				"ia":             2,
				"québec":         2.5,
			},
			DefaultWeight: 1.0,
			Boost:         0.2,
			Threshold:     0.9,
			Required:      []string{"ia", "finances", "québec", "agentique"},
		},
		Refine: RefineConfig{
			Enabled: true,
			TopN:    5,
			Exclude: []string{"co2", "carbon", "climate", "capture"},
			Sources: []string{AdapterNews, AdapterDOAJ},
		},
		Concurrency: ConcurrencyConfig{
			Parallel:          true,
			Workers:           4,
			RequestsPerSecond: 1,
		},
		LLM: LLMConfig{
			Provider:    "none",
			Timeout:     60,
			MaxTokens:   600,
			Temperature: 0.4,
		},
		Profiles: map[string][]string{
			"fintech":   {"finance", "fraude", "banque", "ia"},
			"agentique": {"ia", "agentique", "québec"},
		},
	}
}
