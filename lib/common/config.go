package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultInstallCommand builds a missing adapter package as a Go plugin.
	// The command is a text/template rendered with .Package, .Output and .Dir.
	DefaultInstallCommand = "go build -buildmode=plugin -o {{.Output}} {{.Package}}"
	// DefaultInstallTimeoutSecond bounds a single install command.
	DefaultInstallTimeoutSecond = 300
)

// FactoryConfig holds all configuration parameters for the store factory.
type FactoryConfig struct {
	// ModulesDir is where installed adapter plugins are placed and looked up
	ModulesDir string
	// InstallCommand is the shell command used to install a missing adapter package
	InstallCommand string
	// InstallTimeoutSecond bounds a single install command (0 = no timeout)
	InstallTimeoutSecond int
	// LogLevel is one of debug, info, warn, error
	LogLevel string
}

// DefaultFactoryConfig returns the configuration used by the package level factory.
func DefaultFactoryConfig() FactoryConfig {
	return FactoryConfig{
		ModulesDir:           DefaultModulesDir(),
		InstallCommand:       DefaultInstallCommand,
		InstallTimeoutSecond: DefaultInstallTimeoutSecond,
		LogLevel:             "warn",
	}
}

// DefaultModulesDir returns <user cache dir>/kvuri/modules, falling back to the temp dir.
func DefaultModulesDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "kvuri", "modules")
}

// InstallTimeout returns the install timeout as a duration.
func (c *FactoryConfig) InstallTimeout() time.Duration {
	return time.Duration(c.InstallTimeoutSecond) * time.Second
}

// String returns a formatted string representation of the configuration
func (c *FactoryConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Adapter Loader")
	addField("Modules Directory", c.ModulesDir)
	addField("Install Command", c.InstallCommand)
	addField("Install Timeout", fmt.Sprintf("%d sec", c.InstallTimeoutSecond))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
