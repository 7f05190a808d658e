package main

import (
	"os"

	"github.com/wegman-software/ways2geometry/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
