package registry

// Import paths of the adapter packages shipped with kvuri.
// They are linked into the binary by importing github.com/ValentinKolb/kvuri/adapters.
const (
	PackageRedis     = "github.com/ValentinKolb/kvuri/adapters/redis"
	PackageSQL       = "github.com/ValentinKolb/kvuri/adapters/sql"
	PackageFile      = "github.com/ValentinKolb/kvuri/adapters/file"
	PackageCassandra = "github.com/ValentinKolb/kvuri/adapters/cassandra"
)

// Import paths of adapter packages that are installed on demand.
const (
	PackageMongo    = "github.com/ValentinKolb/kvuri-mongo"
	PackageMemcache = "github.com/ValentinKolb/kvuri-memcache"
	PackageEtcd     = "github.com/ValentinKolb/kvuri-etcd"
	PackageDuckDB   = "github.com/ValentinKolb/kvuri-duckdb"
)

// Builtin returns the descriptors every default registry is seeded with.
// Alias schemes (postgres/postgresql, ...) share one descriptor value.
func Builtin() map[string]Descriptor {
	redis := Descriptor{Package: PackageRedis, Mode: ModeString}
	postgres := Descriptor{Package: PackageSQL, ExportName: "Postgres", OptionsMapper: ConnectionString("uri")}
	mongo := Descriptor{Package: PackageMongo, OptionsMapper: ConnectionString("url")}

	return map[string]Descriptor{
		// adapters shipped with kvuri
		"redis:":      redis,
		"rediss:":     redis,
		"postgresql:": postgres,
		"postgres:":   postgres,
		"mysql:":      {Package: PackageSQL, ExportName: "MySQL", OptionsMapper: ConnectionString("uri")},
		"sqlite:":     {Package: PackageSQL, ExportName: "SQLite", OptionsMapper: ConnectionString("uri")},
		"cassandra:":  {Package: PackageCassandra, Mode: ModeString},
		"file:":       {Package: PackageFile, ExportName: "File", OptionsMapper: FilePath("filename")},

		// installed on demand
		"mongodb:":     mongo,
		"mongodb+srv:": mongo,
		"memcache:":    {Package: PackageMemcache, Mode: ModeString},
		"etcd:":        {Package: PackageEtcd, OptionsMapper: ConnectionString("url")},
		"duckdb:":      {Package: PackageDuckDB, OptionsMapper: FilePath("filename")},

		// built-in, no package needed
		"memory:": {Package: NoPackage},
	}
}
