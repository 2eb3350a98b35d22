// Package cli wires the cobra command tree: configuration loading, logger
// setup, and pipeline construction shared by every command.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/PubuduLasith093/RiskSafeAI/internal/cache"
	"github.com/PubuduLasith093/RiskSafeAI/internal/llm"
	"github.com/PubuduLasith093/RiskSafeAI/internal/model"
	"github.com/PubuduLasith093/RiskSafeAI/internal/normalize"
	"github.com/PubuduLasith093/RiskSafeAI/internal/pipeline"
	"github.com/PubuduLasith093/RiskSafeAI/internal/retrieval"
	"github.com/PubuduLasith093/RiskSafeAI/internal/worker"
)

// Version is set at build time via -ldflags
var Version = "dev"

// app carries the state every command shares. Built once in the root
// PersistentPreRunE; commands only read it.
type app struct {
	cfg     *model.Config
	logger  *zap.Logger
	cfgFile string
	verbose bool
}

// Execute runs the CLI
func Execute() error {
	a := &app{}
	root := newRootCmd(a)
	return root.Execute()
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "risksafe",
		Short: "Regulatory obligation register generator",
		Long: `risksafe compiles cited, validated obligation registers for Australian
financial services businesses from regulatory source documents.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := buildLogger(a.verbose)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			a.logger = logger

			cfg, err := loadConfig(a.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a.cfg = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default risksafe.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newRegisterCmd(a))
	root.AddCommand(newBatchCmd(a))
	root.AddCommand(newServeCmd(a))
	root.AddCommand(newConfigCmd(a))
	root.AddCommand(newVersionCmd())
	return root
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// loadConfig merges defaults, the config file, and RISKSAFE_ env vars
func loadConfig(cfgFile string) (*model.Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RISKSAFE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("risksafe")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.risksafe")
	}

	cfg := model.DefaultConfig()
	if err := v.ReadInConfig(); err != nil {
		// A missing default config file is fine; an explicit one is not
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || cfgFile != "" {
			return nil, err
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.LLM.APIKey = apiKeyFor(cfg.LLM.Provider)
	return cfg, nil
}

func apiKeyFor(provider string) string {
	switch provider {
	case "anthropic", "claude":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "ollama":
		return ""
	default:
		return os.Getenv("OPENAI_API_KEY")
	}
}

// buildPipeline constructs the full stage sequence from the loaded config
func buildPipeline(a *app) (*pipeline.Pipeline, error) {
	llmCfg := llm.ConfigFromModel(a.cfg.LLM)
	provider, err := llm.NewProvider(llmCfg)
	if err != nil {
		return nil, fmt.Errorf("create llm provider: %w", err)
	}

	embedder, err := buildEmbedder(a, provider, llmCfg)
	if err != nil {
		return nil, err
	}

	var store cache.Cache
	if a.cfg.Cache.Enabled {
		store = cache.NewMemoryCache(a.cfg.Cache.TTL, a.cfg.Cache.CleanupInterval)
		embedder = normalize.NewCachedEmbedder(embedder, store, a.cfg.Cache.TTL)
	}

	limiter := worker.NewLimiter(a.cfg.Retrieval.RatePerSecond, a.cfg.Retrieval.RateBurst)
	searcher := retrieval.NewHTTPSearcher(a.cfg.Retrieval, limiter, store, a.cfg.Cache.TTL)

	return pipeline.Build(a.cfg, provider, embedder, searcher, a.logger), nil
}

// buildEmbedder reuses the main provider when it can embed; otherwise a
// dedicated OpenAI client handles embeddings regardless of the generation
// provider. The dedicated client shares the generation limiter so the two
// paths draw on one rate allowance.
func buildEmbedder(a *app, provider llm.Provider, cfg llm.Config) (normalize.Embedder, error) {
	if e, ok := provider.(normalize.Embedder); ok {
		return e, nil
	}

	cfg.Provider = "openai"
	cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embeddings require OPENAI_API_KEY when the %s provider is configured", a.cfg.LLM.Provider)
	}
	return llm.NewOpenAIProvider(cfg)
}
