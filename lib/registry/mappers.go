package registry

import (
	"github.com/ValentinKolb/kvuri/lib/uriopts"
	"net/url"
)

// ConnectionString returns a mapper that passes the full URI (including the query)
// verbatim under key. Used for adapters expecting a single connection string option.
func ConnectionString(key string) OptionsMapper {
	return func(u *url.URL) (map[string]any, error) {
		return map[string]any{key: u.String()}, nil
	}
}

// FilePath returns a mapper that resolves a file-style URI (see uriopts.ResolvePath)
// and passes the path under key. The parent directory is created as a side effect.
func FilePath(key string) OptionsMapper {
	return func(u *url.URL) (map[string]any, error) {
		path, err := uriopts.ResolvePath(u)
		if err != nil {
			return nil, err
		}
		return map[string]any{key: path}, nil
	}
}
