// Package main provides the promod CLI for training and evaluating
// promoter regulatory activity models.
package main

import (
	"os"

	"github.com/eamonbyrne/promoter-models/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
