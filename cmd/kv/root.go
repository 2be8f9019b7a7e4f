package kv

import (
	"github.com/ValentinKolb/kvuri/cmd/util"
	"github.com/ValentinKolb/kvuri/lib/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	kvStore *store.Store

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:   "kv",
		Short: "Perform key-value store operations",
		Long: util.WrapString(`Perform key-value store operations on the store selected by --uri.
The adapter for the URI scheme is loaded (and installed if needed) before the command runs.`),
		PersistentPreRunE:  openStore,
		PersistentPostRunE: closeStore,
	}
)

func init() {
	util.SetupStoreFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(setECmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(hasCmd)
	KeyValueCommands.AddCommand(clearCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// openStore resolves the store URI
func openStore(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	f, err := util.NewFactory()
	if err != nil {
		return err
	}

	kvStore, err = f.Open(cmd.Context(), viper.GetString("uri"), util.GetStoreOptions())
	return err
}

// closeStore closes the store opened by openStore
func closeStore(_ *cobra.Command, _ []string) error {
	if kvStore == nil {
		return nil
	}
	return kvStore.Close()
}
