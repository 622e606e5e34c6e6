package main

import (
	"os"

	sbpcmder "github.com/stigmergic-labs/sbp/cmd/sbp"
)

func main() {
	cmd := sbpcmder.NewSBPCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
