package cmd

import (
	"errors"
	"io/fs"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/noveum/gatebench/internal/config"
	"github.com/noveum/gatebench/internal/observability"
)

const binaryName = "gatebench"

var (
	cfgFile string
	envFile string
	verbose bool

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   binaryName,
	Short: "Compare streaming latency of an LLM gateway against the direct provider API",
	Long: `gatebench sends paired streaming chat-completion requests to a gateway and to
the provider it fronts, then reports per-round and pooled latency statistics.

Use the subcommands to perform specific operations.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Keep the global telemetry system quiet until a command opts in.
	if sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: false}); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML; default ./gatebench.yaml or ./config/gatebench.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-dir", ".", "directory for the per-run log file (empty disables it)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.dir", rootCmd.PersistentFlags().Lookup("log-dir"))
}

// initConfig reads the dotenv file, the config file and GATEBENCH_* variables.
func initConfig() {
	dotenvErr := godotenv.Load(envFile)

	v := viper.GetViper()
	config.SetDefaults(v)
	config.ConfigureEnv(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(binaryName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	readErr := v.ReadInConfig()

	// Console-only until a command decides where its log file goes.
	observability.InitCLILogger(binaryName, v.GetString("logging.level"), "", verbose)
	logger := observability.CLILogger

	if dotenvErr != nil && !errors.Is(dotenvErr, fs.ErrNotExist) {
		logger.Warn("Failed to load env file", zap.String("path", envFile), zap.Error(dotenvErr))
	}

	var notFound viper.ConfigFileNotFoundError
	switch {
	case readErr == nil:
		logger.Debug("Using config file", zap.String("path", v.ConfigFileUsed()))
	case errors.As(readErr, &notFound):
		logger.Debug("No config file found, using defaults and environment variables")
	default:
		ExitWithCode(logger, foundry.ExitConfigInvalid, "Error reading config file", readErr)
	}
}
