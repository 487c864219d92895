// Command casebinder ingests a folder of evidence into a case and compiles
// the case binder locally. Case snapshots are kept in Redis.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Lllllllleong/casebinder/internal/models"
	"github.com/Lllllllleong/casebinder/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "casebinder",
	Short: "Build an indexed, paginated evidence binder for a case",
	Long: `casebinder ingests evidence files (PDF, images, Word, audio, text) into a
case, extracts a merged chronology of events from them, and compiles a single
binder PDF with a cover page, an index and "Page X of N" stamping.

Case state lives in Redis so that ingest and compile can run separately.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if viper.GetBool("verbose") {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./casebinder.yaml or ~/.config/casebinder/config.yaml)")
	rootCmd.PersistentFlags().String("case", "", "case id")
	rootCmd.PersistentFlags().String("redis-addr", "localhost:6379", "Redis address holding case snapshots")
	rootCmd.PersistentFlags().Int("redis-db", 0, "Redis database number")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging")

	for _, name := range []string{"case", "redis-addr", "redis-db", "verbose"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func initConfig() {
	// A missing .env is fine.
	_ = godotenv.Load()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("casebinder")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "casebinder"))
		}
	}

	viper.SetEnvPrefix("CASEBINDER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// bindFlags makes the local flags of the running command readable through
// viper, so config file keys and CASEBINDER_* variables can supply them.
// It runs per command because subcommands share flag names.
func bindFlags(cmd *cobra.Command, _ []string) {
	_ = viper.BindPFlags(cmd.LocalFlags())
}

func caseID() (string, error) {
	id := viper.GetString("case")
	if id == "" {
		return "", fmt.Errorf("a case id is required (--case or CASEBINDER_CASE)")
	}
	return id, nil
}

func openStore() (*store.RedisStore, func()) {
	client := redis.NewClient(&redis.Options{
		Addr: viper.GetString("redis-addr"),
		DB:   viper.GetInt("redis-db"),
	})
	return store.NewRedisStore(client), func() { client.Close() }
}

// loadCase returns the stored case, or a new empty one when create is set.
func loadCase(cmd *cobra.Command, st store.CaseStore, id string, create bool) (*models.Case, error) {
	c, err := st.Load(cmd.Context(), id)
	if errors.Is(err, store.ErrNotFound) && create {
		return &models.Case{ID: id}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load case %s: %w", id, err)
	}
	return c, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
