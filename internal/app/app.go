package app

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"chatstream/internal/retention"
	"chatstream/pkg/api/handlers"
	"chatstream/pkg/auth"
	"chatstream/pkg/banner"
	"chatstream/pkg/config"
	"chatstream/pkg/llm"
	"chatstream/pkg/logger"
	"chatstream/pkg/state"
	"chatstream/pkg/store"
	"chatstream/pkg/stream"
)

// Run wires the process: config, logging, store, stream hub, provider,
// retention and the HTTP listeners. It blocks until ctx is canceled.
func Run(ctx context.Context) error {
	// Optional .env for local development; ignore absence.
	_ = godotenv.Load()

	flags := config.ParseConfigFlags()
	fileCfg, fileExists, err := config.ParseConfigFile(flags)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	envCfg, envRes := config.ParseConfigEnvs()
	eff, err := config.LoadEffectiveConfig(flags, fileCfg, fileExists, envCfg, envRes)
	if err != nil {
		return err
	}
	cfg := eff.Config

	logger.InitWithLevel(cfg.Logging.Level)
	defer logger.Sync()
	logger.Info("starting", "addr", eff.Addr, "db", eff.DBPath, "config_source", eff.Source)

	if err := state.EnsureStateDirs(eff.DBPath); err != nil {
		return err
	}
	if err := store.Open(eff.DBPath); err != nil {
		return err
	}
	defer store.Close()

	// Backend keys double as user-signature signing keys.
	backendKeys := map[string]struct{}{}
	for _, k := range cfg.Security.APIKeys.Backend {
		backendKeys[k] = struct{}{}
	}
	for k := range envRes.BackendKeys {
		backendKeys[k] = struct{}{}
	}
	signingKeys := map[string]struct{}{}
	for k := range backendKeys {
		signingKeys[k] = struct{}{}
	}
	config.SetRuntime(&config.RuntimeConfig{BackendKeys: backendKeys, SigningKeys: signingKeys})

	broker, brokerName, err := buildBroker(cfg)
	if err != nil {
		return err
	}
	hub := stream.NewHub(broker, cfg.Stream.ReplayBufferMax.Int64(), cfg.Stream.Linger.Duration())
	defer hub.Close()

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}
	handlers.Configure(hub, provider, cfg.LLM)

	sweeper, err := retention.New(cfg.Retention)
	if err != nil {
		return err
	}
	handlers.SetRetentionRunner(sweeper.RunOnce)
	go sweeper.Start(ctx)

	gw := auth.NewGateway(cfg.Security)
	banner.Print(os.Stdout, eff.Addr, eff.DBPath, provider.Name(), brokerName)
	return serveHTTP(ctx, cfg, eff.Addr, gw)
}

func buildBroker(cfg *config.Config) (stream.Broker, string, error) {
	switch cfg.Stream.Broker {
	case "", "local":
		return stream.Local(cfg.Stream.SubscriberTimeout.Duration()), "local", nil
	case "nats":
		url := cfg.Stream.NATSURL
		if url == "" {
			return nil, "", fmt.Errorf("stream broker is nats but nats_url is empty")
		}
		b, err := stream.Connect(url)
		if err != nil {
			return nil, "", fmt.Errorf("nats connect: %w", err)
		}
		return b, "nats", nil
	default:
		return nil, "", fmt.Errorf("unknown stream broker: %q", cfg.Stream.Broker)
	}
}

func buildProvider(cfg *config.Config) (llm.Provider, error) {
	switch cfg.LLM.Provider {
	case "", "openai":
		return llm.NewOpenAI(cfg.LLM)
	case "scripted":
		return &llm.Scripted{}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", cfg.LLM.Provider)
	}
}
