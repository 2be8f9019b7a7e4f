package codec

// ICodec is the interface for all value codecs used by store.Typed
type ICodec interface {
	// Encode encodes a value into a byte array
	Encode(v any) ([]byte, error)
	// Decode decodes a byte array into the value pointed to by v
	Decode(b []byte, v any) error
}

// ByName returns the codec with the given name (json, gob).
// The second return value is false for unknown names.
func ByName(name string) (ICodec, bool) {
	switch name {
	case "json":
		return NewJSONCodec(), true
	case "gob":
		return NewGOBCodec(), true
	default:
		return nil, false
	}
}
