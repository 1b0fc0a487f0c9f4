package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/techtag/internal/model"
)

// Version is set at build time.
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "techtag",
	Short: "techtag - keyword heuristic technique classification",
	Long: `techtag classifies text chunks against a hierarchical ontology of
techniques using configurable anchor and support phrases.

It suggests a primary technique and the techniques mentioned for every
untagged item, and keeps each suggestion in a review queue until a
person approves, corrects or rejects it.

Suggestions are heuristic. They are never applied without review.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("techtag %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.techtag/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".techtag"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// TECHTAG_STORE_PATH overrides store.path
	viper.SetEnvPrefix("TECHTAG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(viper.GetViper(), model.DefaultConfig())

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper, d *model.Config) {
	v.SetDefault("ontology.path", d.Ontology.Path)
	v.SetDefault("ontology.root_key", d.Ontology.RootKey)
	v.SetDefault("ontology.id_fields", d.Ontology.IDFields)
	v.SetDefault("rules.path", d.Rules.Path)
	v.SetDefault("rules.watch", d.Rules.Watch)
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("batch.max_items", d.Batch.MaxItems)
	v.SetDefault("batch.workers", d.Batch.Workers)
	v.SetDefault("batch.writes_per_second", d.Batch.WritesPerSecond)
	v.SetDefault("batch.burst", d.Batch.Burst)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("api.host", d.API.Host)
	v.SetDefault("api.port", d.API.Port)
}

// decodeConfig unmarshals v into a validated Config.
func decodeConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ApplyDefaults()
	if v.GetBool("verbose") {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadConfig() (*model.Config, error) {
	return decodeConfig(viper.GetViper())
}
