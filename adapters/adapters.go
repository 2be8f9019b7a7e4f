// Package adapters links all adapters shipped with kvuri into the binary.
//
//	import _ "github.com/ValentinKolb/kvuri/adapters"
//
// Without this import the loader treats the shipped adapter packages like any other
// package and installs them as plugins on first use.
package adapters

import (
	_ "github.com/ValentinKolb/kvuri/adapters/cassandra"
	_ "github.com/ValentinKolb/kvuri/adapters/file"
	_ "github.com/ValentinKolb/kvuri/adapters/redis"
	_ "github.com/ValentinKolb/kvuri/adapters/sql"
)
