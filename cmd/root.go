package cmd

import (
	"log"

	"github.com/spigell/licita-radar/internal/ai/gemini"
	"github.com/spigell/licita-radar/internal/classify"
	"github.com/spigell/licita-radar/internal/fuzzy"
	"github.com/spigell/licita-radar/internal/pncp"
	"github.com/spigell/licita-radar/internal/sector"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "licita-radar"
)

type Config struct {
	Profile *sector.Profile `mapstructure:"profile"`
	// Filters are saved filters in their raw, possibly legacy, shape.
	Filters     []map[string]any `mapstructure:"filters"`
	Terms       []string         `mapstructure:"terms"`
	Source      *SourceConfig    `mapstructure:"source"`
	Matching    *MatchingConfig  `mapstructure:"matching"`
	ExcludeFile string           `mapstructure:"exclude-file"`
	AI          *AIConfig        `mapstructure:"ai"`
}

type SourceConfig struct {
	// File is a JSON dump of records. PNCP is not queried when it is set.
	File      string             `mapstructure:"file"`
	UserAgent string             `mapstructure:"user-agent"`
	MaxPages  int                `mapstructure:"max-pages"`
	PNCP      *pncp.SearchParams `mapstructure:"pncp"`
}

type MatchingConfig struct {
	Fuzzy   fuzzy.Options  `mapstructure:"fuzzy"`
	Weights sector.Weights `mapstructure:"weights"`
	// DisableSystemSynonyms skips the built-in procurement vocabulary.
	DisableSystemSynonyms bool `mapstructure:"disable-system-synonyms"`
}

type AIConfig struct {
	Enabled           bool                   `mapstructure:"enabled"`
	Provider          string                 `mapstructure:"provider"`
	MinimumConfidence float64                `mapstructure:"minimum-confidence"`
	Hybrid            classify.Options       `mapstructure:"hybrid"`
	Prompt            gemini.PromptOverrides `mapstructure:"prompt"`
	Gemini            *GeminiConfig          `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key" json:"-"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "licita-radar finds public procurements relevant to a company profile",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is licita-radar.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("log-file", "", "write logs to a file instead of stdout")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("log-file", rootCmd.PersistentFlags().Lookup("log-file"))
}

func initConfig() {
	// Config needed only for run command now. If there is no config, we can skip initialization
	if runCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
