package util

import (
	"fmt"
	"github.com/ValentinKolb/kvuri/lib/common"
	"github.com/ValentinKolb/kvuri/lib/factory"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"strings"
	"time"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupFactoryFlags adds the flags configuring adapter loading to a command
func SetupFactoryFlags(cmd *cobra.Command) {
	defaults := common.DefaultFactoryConfig()

	key := "modules-dir"
	cmd.PersistentFlags().String(key, defaults.ModulesDir, WrapString("Directory installed adapter plugins are stored in"))

	key = "install-command"
	cmd.PersistentFlags().String(key, defaults.InstallCommand, WrapString("Command used to install a missing adapter package. It is a Go template with the fields .Package, .Output and .Dir. An empty command disables installing"))

	key = "install-timeout"
	cmd.PersistentFlags().Int(key, defaults.InstallTimeoutSecond, WrapString("Timeout of the install command in seconds (0 = no timeout)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, defaults.LogLevel, WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// SetupStoreFlags adds the flags selecting and configuring a store to a command
func SetupStoreFlags(cmd *cobra.Command) {
	key := "uri"
	cmd.PersistentFlags().String(key, "memory://", WrapString("Connection URI of the store (e.g. redis://localhost:6379, sqlite://./kv.db, file://~/kv.json)"))

	key = "namespace"
	cmd.PersistentFlags().String(key, "", WrapString("Namespace (key prefix) of the store, overrides the namespace query parameter"))

	key = "ttl"
	cmd.PersistentFlags().Int64(key, 0, WrapString("Default time to live of written keys in milliseconds (0 = no expiry)"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("kvuri")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetFactoryConfig reads the factory configuration from viper
func GetFactoryConfig() common.FactoryConfig {
	return common.FactoryConfig{
		ModulesDir:           viper.GetString("modules-dir"),
		InstallCommand:       viper.GetString("install-command"),
		InstallTimeoutSecond: viper.GetInt("install-timeout"),
		LogLevel:             viper.GetString("log-level"),
	}
}

// GetStoreOptions reads the caller options of a store from viper
func GetStoreOptions() *factory.Options {
	return &factory.Options{
		Namespace: viper.GetString("namespace"),
		TTL:       time.Duration(viper.GetInt64("ttl")) * time.Millisecond,
	}
}

// NewFactory initializes the loggers and creates a factory from the configuration
func NewFactory() (*factory.Factory, error) {
	conf := GetFactoryConfig()
	if err := common.InitLoggers(conf.LogLevel, os.Stderr); err != nil {
		return nil, err
	}
	if conf.ModulesDir == "" {
		return nil, fmt.Errorf("modules-dir must not be empty")
	}
	return factory.New(conf), nil
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
