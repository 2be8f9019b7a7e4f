package cmd

import (
	"fmt"
	"github.com/ValentinKolb/kvuri/cmd/kv"
	"github.com/ValentinKolb/kvuri/cmd/registry"
	"github.com/ValentinKolb/kvuri/cmd/util"
	"github.com/spf13/cobra"
	"os"
	"os/exec"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "kvuri",
		Short: "open key-value stores from connection URIs",
		Long: fmt.Sprintf(`kvuri (v%s)

A key-value store factory written in Go. A connection URI like
redis://localhost:6379 or sqlite://./kv.db selects a backend adapter,
which is loaded (and installed on demand) and wrapped in a uniform store.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of kvuri",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kvuri v%s\n", Version)
		},
	}

	// upgradeCmd represents the upgrade command
	upgradeCmd = &cobra.Command{
		Use:   "upgrade",
		Short: "Upgrade kvuri to the latest version",
		Long:  `Upgrade kvuri to the latest version by installing it with the go toolchain.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Upgrading kvuri to the latest version...")

			// Get version flag
			version, _ := cmd.Flags().GetString("version")
			if version == "" {
				version = "latest"
			}

			// Combine the command
			target := "github.com/ValentinKolb/kvuri@" + version

			// Create and run the command
			shellCmd := exec.CommandContext(cmd.Context(), "go", "install", target)
			shellCmd.Stdout = os.Stdout
			shellCmd.Stderr = os.Stderr

			fmt.Println("Executing: go install", target)
			err := shellCmd.Run()
			if err != nil {
				fmt.Printf("Error upgrading kvuri: %v\n", err)
				os.Exit(1)
			}

			fmt.Println("kvuri has been successfully upgraded!")
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(registry.RegistryCommands)
	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(upgradeCmd)

	// Add Flags for upgrade command
	upgradeCmd.Flags().String("version", "", "Version to install (default latest)")

	// Add Flags
	util.SetupFactoryFlags(RootCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
