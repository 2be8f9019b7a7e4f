package registry

import (
	"fmt"
	"github.com/ValentinKolb/kvuri/cmd/util"
	"github.com/ValentinKolb/kvuri/lib/factory"
	"github.com/ValentinKolb/kvuri/lib/loader"
	"github.com/spf13/cobra"
	"os"
	"sort"
	"text/tabwriter"
)

var (
	kvFactory *factory.Factory

	// RegistryCommands represents the registry command group
	RegistryCommands = &cobra.Command{
		Use:   "registry",
		Short: "Inspect the protocol registry",
		Long: util.WrapString(`Inspect the protocol registry: list the supported URI schemes
and show how a URI would be resolved without connecting to the backend.`),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := util.BindCommandFlags(cmd); err != nil {
				return err
			}
			var err error
			kvFactory, err = util.NewFactory()
			return err
		},
	}
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists all registered schemes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SCHEME\tPACKAGE\tEXPORT\tMODE\tMAPPER\tLINKED")

			entries := kvFactory.GetRegistry()
			for _, scheme := range kvFactory.Registry().Schemes() {
				d := entries[scheme]
				pkg, export := d.Package, d.ExportName
				if d.IsBuiltin() {
					pkg = "(builtin)"
				}
				if export == "" {
					export = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%t\n",
					scheme, pkg, export, d.Mode, d.OptionsMapper != nil, isLinked(d.Package))
			}
			return w.Flush()
		},
	}
	resolveCmd = &cobra.Command{
		Use:   "resolve [uri]",
		Short: "Shows how a URI is resolved without opening it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := kvFactory.Describe(args[0], util.GetStoreOptions())
			if err != nil {
				return err
			}
			d := req.Descriptor

			fmt.Printf("uri:      %s\n", req.URI)
			fmt.Printf("scheme:   %s\n", req.Scheme)
			if d.IsBuiltin() {
				fmt.Println("adapter:  builtin (memory)")
			} else {
				export := d.ExportName
				if export == "" {
					export = loader.DefaultExport
				}
				conf := util.GetFactoryConfig()
				fmt.Printf("package:  %s\n", d.Package)
				fmt.Printf("export:   %s\n", export)
				fmt.Printf("mode:     %s\n", d.Mode)
				fmt.Printf("linked:   %t\n", isLinked(d.Package))
				fmt.Printf("cached:   %t\n", kvFactory.Loader().Cached(d.Package, d.ExportName))
				fmt.Printf("plugin:   %s\n", loader.PluginPath(conf.ModulesDir, d.Package))
				if conf.InstallCommand == "" {
					fmt.Println("install:  disabled")
				} else {
					line, err := loader.NewCommandInstaller(conf.InstallCommand, conf.InstallTimeout()).Render(d.Package, conf.ModulesDir)
					if err != nil {
						return err
					}
					fmt.Printf("install:  %s\n", line)
				}
			}

			fmt.Println("options:")
			keys := make([]string, 0, len(req.Merged))
			for k := range req.Merged {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("  %s = %v (%T)\n", k, req.Merged[k], req.Merged[k])
			}
			return nil
		},
	}
)

func init() {
	util.SetupStoreFlags(RegistryCommands)

	// the store is never opened, the uri flag is given as argument instead
	_ = RegistryCommands.PersistentFlags().MarkHidden("uri")

	RegistryCommands.AddCommand(listCmd)
	RegistryCommands.AddCommand(resolveCmd)
}

// isLinked reports whether pkg is compiled into the binary
func isLinked(pkg string) bool {
	if pkg == "" {
		return false
	}
	_, err := loader.LinkedModules().TryLoad(pkg)
	return err == nil
}
