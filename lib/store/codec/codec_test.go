package codec

import (
	"reflect"
	"testing"
)

type session struct {
	User  string
	Roles []string
	Hits  int
}

func TestCodecs(t *testing.T) {
	for _, name := range []string{"json", "gob"} {
		t.Run(name, func(t *testing.T) {
			c, ok := ByName(name)
			if !ok {
				t.Fatalf("codec %s not found", name)
			}

			in := session{User: "alice", Roles: []string{"admin"}, Hits: 3}
			b, err := c.Encode(in)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			var out session
			if err := c.Decode(b, &out); err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !reflect.DeepEqual(in, out) {
				t.Errorf("Decode() = %+v, want %+v", out, in)
			}
		})
	}

	if _, ok := ByName("xml"); ok {
		t.Errorf("expected unknown codec to be rejected")
	}
}
