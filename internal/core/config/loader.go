package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/txsync/internal/core/domain"
)

// Default worker and rate budgets per provider family.
var (
	defaultWorkers = map[domain.ProviderType]int{
		domain.ProviderRPC:      10,
		domain.ProviderZksync:   10,
		domain.ProviderLoopring: 5,
		domain.ProviderStarkex:  5,
	}
	defaultCallsPerMinute = map[domain.ProviderType]int{
		domain.ProviderRPC:      600,
		domain.ProviderZksync:   3000,
		domain.ProviderLoopring: 240,
		domain.ProviderStarkex:  600,
	}
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, expanding environment variables, and applies defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.UnmarshalStrict([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Sync.Storage == "" {
		c.Sync.Storage = "postgres"
	}
	if c.Sync.CheckInterval == 0 {
		c.Sync.CheckInterval = time.Minute
	}
	if c.Sync.ShutdownTimeout == 0 {
		c.Sync.ShutdownTimeout = 30 * time.Second
	}

	sx := &c.Sync.Starkex
	if sx.CallsPerMinute == 0 {
		sx.CallsPerMinute = defaultCallsPerMinute[domain.ProviderStarkex]
	}
	if sx.Workers == 0 {
		sx.Workers = defaultWorkers[domain.ProviderStarkex]
	}
	if sx.APIDelay == 0 {
		sx.APIDelay = 4 * time.Hour
	}
	if sx.Timeout == 0 {
		sx.Timeout = 30 * time.Second
	}

	for i := range c.Projects {
		p := &c.Projects[i]
		if p.Workers == 0 {
			p.Workers = defaultWorkers[p.Type]
		}
		if p.CallsPerMinute == 0 {
			p.CallsPerMinute = defaultCallsPerMinute[p.Type]
		}
		if p.Timeout == 0 {
			p.Timeout = 30 * time.Second
		}
	}
}

// Validate reports every configuration problem found.
func (c *AppConfig) Validate() error {
	var errs []error

	if c.Sync.Storage != "postgres" && c.Sync.Storage != "memory" {
		errs = append(errs, fmt.Errorf("sync.storage: unknown storage %q", c.Sync.Storage))
	}
	if c.Sync.Storage == "postgres" && c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required for postgres storage"))
	}

	seen := make(map[domain.ProjectID]bool)
	hasStarkex := false
	for i, p := range c.Projects {
		prefix := fmt.Sprintf("projects[%d]", i)
		if p.ID == "" {
			errs = append(errs, fmt.Errorf("%s: id is required", prefix))
		} else if seen[p.ID] {
			errs = append(errs, fmt.Errorf("%s: duplicate project %q", prefix, p.ID))
		}
		seen[p.ID] = true

		if !p.Type.Valid() {
			errs = append(errs, fmt.Errorf("%s: unknown provider type %q", prefix, p.Type))
			continue
		}
		if p.CallsPerMinute < 0 || p.Workers < 0 {
			errs = append(errs, fmt.Errorf("%s: workers and calls_per_minute must be positive", prefix))
		}

		switch p.Type {
		case domain.ProviderZksync:
			if p.ID != domain.ProjectZksync {
				errs = append(errs, fmt.Errorf("%s: zksync provider only serves project %q", prefix, domain.ProjectZksync))
			}
			if p.URL == "" {
				errs = append(errs, fmt.Errorf("%s: url is required", prefix))
			}
		case domain.ProviderStarkex:
			hasStarkex = true
			if p.Product == "" {
				errs = append(errs, fmt.Errorf("%s: product is required for starkex", prefix))
			}
			if p.SinceTimestamp <= 0 {
				errs = append(errs, fmt.Errorf("%s: since_timestamp is required for starkex", prefix))
			}
		default:
			if p.URL == "" {
				errs = append(errs, fmt.Errorf("%s: url is required", prefix))
			}
		}
	}

	if hasStarkex && c.Sync.Starkex.URL == "" {
		errs = append(errs, errors.New("sync.starkex.url is required when a starkex project is configured"))
	}

	return errors.Join(errs...)
}
