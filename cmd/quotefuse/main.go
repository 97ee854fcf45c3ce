package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nimblefi/quotefuse/pkg/config"
	"github.com/nimblefi/quotefuse/pkg/engine/events"
	"github.com/nimblefi/quotefuse/pkg/engine/feeds"
	"github.com/nimblefi/quotefuse/pkg/engine/registry"
	"github.com/nimblefi/quotefuse/pkg/logging"
	"github.com/nimblefi/quotefuse/pkg/metrics"
	"github.com/nimblefi/quotefuse/pkg/server/api"
	"github.com/nimblefi/quotefuse/pkg/version"
)

var (
	configFile = flag.String("config", "config/config.yaml", "Path to configuration file")
	showVer    = flag.Bool("version", false, "Show version and exit")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("quotefuse version %s\n", version.Version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)

	logger.Info("Starting quotefuse", "version", version.Version)

	if cfg.Metrics.Enabled {
		metrics.Init()
		go func() {
			logger.Info("Starting metrics server", "addr", cfg.Metrics.Addr)
			if err := metrics.ServeHTTP(cfg.Metrics.Addr); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	bus := events.NewBus(logger)
	reg, err := buildRegistry(cfg, bus, logger)
	if err != nil {
		logger.Fatal("Failed to build quote registry", "error", err)
	}

	// Setup graceful shutdown
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	server := api.NewServer(cfg.Server.HTTP.Addr, reg, logger)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig.String())
		cancel()
	case err := <-errChan:
		if err != nil {
			logger.Error("Server failed", "error", err)
			cancel()
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down gracefully...")
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Shutdown complete")
}

// buildRegistry wires feed stores, adapters and pair aggregators from config.
func buildRegistry(cfg *config.Config, bus *events.Bus, logger *logging.Logger) (*registry.Registry, error) {
	owner := feeds.Account(cfg.Registry.Owner)

	stores, err := buildStores(cfg, logger)
	if err != nil {
		return nil, err
	}

	adapters, err := buildAdapters(cfg, owner, stores, bus, logger)
	if err != nil {
		return nil, err
	}

	reg, err := registry.New(owner, bus, logger)
	if err != nil {
		return nil, err
	}

	for _, pairCfg := range cfg.Pairs {
		pair := feeds.NewPair(pairCfg.Base, pairCfg.Quote)

		sources := make([]feeds.Source, 0, len(pairCfg.Adapters))
		for _, name := range pairCfg.Adapters {
			sources = append(sources, adapters[name])
		}

		handle, err := reg.CreateAggregator(owner, pair, sources, pairCfg.MaxDeviationBps)
		if err != nil {
			return nil, fmt.Errorf("pair %s: %w", pair, err)
		}
		logger.Info("Pair aggregator provisioned",
			"pair", pair.String(), "handle", handle,
			"oracles", len(sources), "max_deviation_bps", pairCfg.MaxDeviationBps)
	}

	return reg, nil
}

// buildStores constructs the configured feed stores.
func buildStores(cfg *config.Config, logger *logging.Logger) (map[string]feeds.FeedStore, error) {
	stores := make(map[string]feeds.FeedStore, len(cfg.Feeds))
	for _, feedCfg := range cfg.Feeds {
		switch feedCfg.Type {
		case "http":
			endpoints := make(map[string]feeds.FeedEndpoint, len(feedCfg.Endpoints))
			for key, ep := range feedCfg.Endpoints {
				endpoints[key] = feeds.FeedEndpoint{
					URL:       ep.URL,
					PricePath: ep.PricePath,
					TimePath:  ep.TimePath,
					Decimals:  ep.Decimals,
				}
			}
			stores[feedCfg.Name] = feeds.NewHTTPFeedStore(feedCfg.Name, endpoints, feedCfg.RateLimitRPS, logger)

		case "static":
			store := feeds.NewStaticFeedStore()
			for key, pinned := range feedCfg.Prices {
				price, err := decimal.NewFromString(pinned.Price)
				if err != nil {
					return nil, fmt.Errorf("feed %s key %s: invalid price: %w", feedCfg.Name, key, err)
				}
				store.Set(key, price, pinned.Decimals, time.Now())
			}
			stores[feedCfg.Name] = store

		default:
			return nil, fmt.Errorf("feed %s: unknown type %s", feedCfg.Name, feedCfg.Type)
		}
	}
	return stores, nil
}

// buildAdapters constructs the configured quote source adapters and seeds
// their pair-key mappings.
func buildAdapters(cfg *config.Config, owner feeds.Account, stores map[string]feeds.FeedStore, bus *events.Bus, logger *logging.Logger) (map[string]feeds.Source, error) {
	adapters := make(map[string]feeds.Source, len(cfg.Adapters))
	for _, adapterCfg := range cfg.Adapters {
		store := stores[adapterCfg.Feed]

		var source feeds.Source
		var keyed interface {
			SetPairKey(caller feeds.Account, pair feeds.Pair, key string) error
		}

		switch adapterCfg.Type {
		case "feed":
			adapter, err := feeds.NewFeedAdapter(adapterCfg.Name, owner, store, bus, logger)
			if err != nil {
				return nil, fmt.Errorf("adapter %s: %w", adapterCfg.Name, err)
			}
			source, keyed = adapter, adapter

		case "getter":
			getter, err := feeds.NewStoreGetter(store)
			if err != nil {
				return nil, fmt.Errorf("adapter %s: %w", adapterCfg.Name, err)
			}
			adapter, err := feeds.NewGetterAdapter(adapterCfg.Name, owner, getter, bus, logger)
			if err != nil {
				return nil, fmt.Errorf("adapter %s: %w", adapterCfg.Name, err)
			}
			source, keyed = adapter, adapter

		default:
			return nil, fmt.Errorf("adapter %s: unknown type %s", adapterCfg.Name, adapterCfg.Type)
		}

		for symbol, key := range adapterCfg.PairKeys {
			pair, err := feeds.ParsePair(symbol)
			if err != nil {
				return nil, fmt.Errorf("adapter %s: %w", adapterCfg.Name, err)
			}
			if err := keyed.SetPairKey(owner, pair, key); err != nil {
				return nil, fmt.Errorf("adapter %s: %w", adapterCfg.Name, err)
			}
		}

		adapters[adapterCfg.Name] = source
	}
	return adapters, nil
}
