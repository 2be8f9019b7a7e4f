/*
Package loader resolves adapter package names to adapter constructors.

Packages are looked up in a ModuleGraph. Two graphs exist:

  - the linked graph, filled by adapter packages compiled into the binary (see Link)
  - a plugin directory, holding Go plugins built by an Installer

When a package is missing, the Loader runs the installer once and tries again.
Successful loads are cached by package and export name:

	l := loader.NewFromConfig(common.DefaultFactoryConfig())
	ctor, err := l.Load(ctx, "github.com/ValentinKolb/kvuri/adapters/sql", "SQLite")

An adapter package registers itself like this:

	func init() {
		loader.Link("github.com/example/kv-adapter", loader.Exports{
			loader.DefaultExport: loader.Constructor(New),
		})
	}

A plugin exports the same symbols as package level variables or functions.
*/
package loader
