// Package registry maps URI schemes to adapter descriptors.
//
// A Descriptor names the adapter module to load (by import path), optionally a
// named export of that module, the construction mode and an optional mapper
// deriving adapter options from the URI. Schemes are stored normalized with a
// trailing ':' ("redis:"), Register("x") and Register("x:") are equivalent.
//
// NewDefault seeds a registry with the schemes supported out of the box:
//
//	redis, rediss                 adapters/redis       (string mode)
//	postgresql, postgres, mysql,  adapters/sql         (uri mapper, named exports)
//	sqlite
//	cassandra                     adapters/cassandra   (string mode)
//	file                          adapters/file        (filename mapper)
//	mongodb, mongodb+srv, etcd,   installed on demand
//	memcache, duckdb
//	memory                        built-in, no package
package registry
