package config

import (
	"fmt"
	"strings"

	"github.com/nimblefi/quotefuse/pkg/engine/feeds"
)

// Validate checks configuration for errors
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Registry.Owner) == "" {
		return fmt.Errorf("registry config: %w", ErrNoOwner)
	}

	feedNames, err := validateFeeds(cfg.Feeds)
	if err != nil {
		return err
	}

	adapterNames, err := validateAdapters(cfg.Adapters, feedNames)
	if err != nil {
		return err
	}

	if err := validatePairs(cfg.Pairs, adapterNames); err != nil {
		return err
	}

	if err := validateLoggingConfig(&cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func validateFeeds(feedCfgs []FeedConfig) (map[string]bool, error) {
	names := make(map[string]bool, len(feedCfgs))
	for i, feed := range feedCfgs {
		if feed.Name == "" {
			return nil, fmt.Errorf("feed %d: name is required", i)
		}
		if names[feed.Name] {
			return nil, fmt.Errorf("feed %s: %w", feed.Name, ErrDuplicateName)
		}
		names[feed.Name] = true

		switch feed.Type {
		case "http":
			if len(feed.Endpoints) == 0 {
				return nil, fmt.Errorf("feed %s: http feed needs at least one endpoint", feed.Name)
			}
			for key, ep := range feed.Endpoints {
				if ep.URL == "" || ep.PricePath == "" {
					return nil, fmt.Errorf("feed %s key %s: url and price_path are required", feed.Name, key)
				}
			}
		case "static":
			if len(feed.Prices) == 0 {
				return nil, fmt.Errorf("feed %s: static feed needs at least one price", feed.Name)
			}
		default:
			return nil, fmt.Errorf("feed %s: %w: %s", feed.Name, ErrInvalidFeedType, feed.Type)
		}
	}
	return names, nil
}

func validateAdapters(adapterCfgs []AdapterConfig, feedNames map[string]bool) (map[string]bool, error) {
	if len(adapterCfgs) == 0 {
		return nil, fmt.Errorf("%w", ErrNoAdaptersConfigured)
	}

	names := make(map[string]bool, len(adapterCfgs))
	for i, adapter := range adapterCfgs {
		if adapter.Name == "" {
			return nil, fmt.Errorf("adapter %d: name is required", i)
		}
		if names[adapter.Name] {
			return nil, fmt.Errorf("adapter %s: %w", adapter.Name, ErrDuplicateName)
		}
		names[adapter.Name] = true

		if adapter.Type != "feed" && adapter.Type != "getter" {
			return nil, fmt.Errorf("adapter %s: %w: %s", adapter.Name, ErrInvalidAdapterType, adapter.Type)
		}
		if !feedNames[adapter.Feed] {
			return nil, fmt.Errorf("adapter %s: %w: %s", adapter.Name, ErrUnknownFeedRef, adapter.Feed)
		}
		for symbol := range adapter.PairKeys {
			if _, err := feeds.ParsePair(symbol); err != nil {
				return nil, fmt.Errorf("adapter %s: %w", adapter.Name, err)
			}
		}
	}
	return names, nil
}

func validatePairs(pairCfgs []PairConfig, adapterNames map[string]bool) error {
	if len(pairCfgs) == 0 {
		return fmt.Errorf("%w", ErrNoPairsConfigured)
	}

	seen := make(map[string]bool, len(pairCfgs))
	for i, pairCfg := range pairCfgs {
		pair := feeds.NewPair(pairCfg.Base, pairCfg.Quote)
		if pair.IsZero() {
			return fmt.Errorf("pair %d: base and quote are required", i)
		}
		if seen[pair.String()] || seen[pair.Mirror().String()] {
			return fmt.Errorf("pair %s: %w", pair, ErrDuplicatePair)
		}
		seen[pair.String()] = true

		if pairCfg.MaxDeviationBps > 10_000 {
			return fmt.Errorf("pair %s: %w: %d", pair, ErrInvalidDeviationBps, pairCfg.MaxDeviationBps)
		}
		if len(pairCfg.Adapters) == 0 {
			return fmt.Errorf("pair %s: at least one adapter is required", pair)
		}
		for _, name := range pairCfg.Adapters {
			if !adapterNames[name] {
				return fmt.Errorf("pair %s: %w: %s", pair, ErrUnknownAdapterRef, name)
			}
		}
	}
	return nil
}

func validateLoggingConfig(cfg *LoggingConfig) error {
	level := strings.ToLower(cfg.Level)
	switch level {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return fmt.Errorf("%w: %s", ErrInvalidLogLevel, cfg.Level)
	}

	format := strings.ToLower(cfg.Format)
	if format != "json" && format != "text" {
		return fmt.Errorf("%w: %s", ErrInvalidLogFormat, cfg.Format)
	}

	return nil
}
