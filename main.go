package main

import (
	"github.com/ValentinKolb/kvuri/cmd"

	// link the bundled adapters into the binary
	_ "github.com/ValentinKolb/kvuri/adapters"
)

func main() {
	cmd.Execute()
}
