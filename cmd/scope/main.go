package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"codescope/cmd/scope/chat"
	"codescope/internal/config"
	"codescope/internal/gateway"
	"codescope/internal/logging"
	"codescope/internal/repotree"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	apiKey     string
	workspace  string
	modelName  string
	timeout    time.Duration
	configPath string

	// Logger for non-interactive commands
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "scope",
	Short: "codescope - agent-narrated repository explorer",
	Long: `codescope is an interactive repository explorer. A team of specialist
agents (Explorer, Architect, Explainer, and friends) narrates answers
about imported repositories over a single completion backend.

Run without arguments to start the interactive chat interface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The interactive UI does its own category file logging.
		if cmd.CalledAs() == "scope" {
			return nil
		}

		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractiveChat()
	},
}

// analyzeCmd analyzes a repository without entering the TUI
var analyzeCmd = &cobra.Command{
	Use:   "analyze [repository-url]",
	Short: "Analyze a repository and print its structure as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the codescope version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("codescope v0.1.0")
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key (or set CODESCOPE_API_KEY env)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&modelName, "model", "", "Completion model override")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: <workspace>/.codescope/config.yaml)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves workspace, config file, and flag overrides.
func loadConfig() (*config.Config, error) {
	ws := workspace
	if ws == "" {
		var err error
		ws, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve workspace: %w", err)
		}
	}

	path := configPath
	if path == "" {
		path = config.DefaultPath(ws)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.Workspace = ws

	// Flags win over file and environment.
	if apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if modelName != "" {
		cfg.LLM.Model = modelName
	}
	if verbose {
		cfg.Logging.Debug = true
	}
	return cfg, nil
}

func runInteractiveChat() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := logging.Initialize(cfg.Workspace, cfg.Logging.Debug); err != nil {
		fmt.Fprintf(os.Stderr, "warning: file logging disabled: %v\n", err)
	}
	defer logging.CloseAll()

	return chat.RunInteractiveChat(chat.Config{
		APIKey:    cfg.LLM.APIKey,
		Model:     cfg.LLM.Model,
		BaseURL:   cfg.LLM.BaseURL,
		Workspace: cfg.Workspace,
		Debug:     cfg.Logging.Debug,
	})
}

// runAnalyze performs a one-shot repository analysis and prints the
// coerced tree as JSON.
func runAnalyze(cmd *cobra.Command, args []string) error {
	url := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := gateway.ValidateRepoURL(url); err != nil {
		return err
	}

	gwCfg := gateway.DefaultConfig(cfg.LLM.APIKey)
	if cfg.LLM.Model != "" {
		gwCfg.Model = cfg.LLM.Model
	}
	if cfg.LLM.BaseURL != "" {
		gwCfg.BaseURL = cfg.LLM.BaseURL
	}
	client := gateway.NewClientWithConfig(gwCfg)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("analyzing repository", zap.String("url", url))
	analysis, err := client.AnalyzeRepository(ctx, url)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	root := &repotree.FileNode{
		Name:     analysis.Name,
		Path:     analysis.Name,
		Kind:     repotree.KindDirectory,
		Children: repotree.Coerce(analysis.Structure),
	}
	logger.Info("analysis complete",
		zap.String("name", analysis.Name),
		zap.Int("nodes", repotree.CountNodes([]*repotree.FileNode{root})))

	out := struct {
		Name    string             `json:"name"`
		Summary string             `json:"summary"`
		Stack   []string           `json:"stack"`
		Tree    *repotree.FileNode `json:"tree"`
	}{analysis.Name, analysis.Summary, analysis.Stack, root}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
