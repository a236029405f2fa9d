// Package main provides the silencesplit command line.
package main

import (
	"os"

	"github.com/maauso/silencesplit/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
