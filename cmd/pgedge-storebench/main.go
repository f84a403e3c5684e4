// Package main is the entry point for pgedge-storebench.
package main

import (
	"fmt"
	"os"

	"github.com/pgEdge/pgedge-storebench/internal/cli"

	// Register backends
	_ "github.com/pgEdge/pgedge-storebench/internal/store/memstore"
	_ "github.com/pgEdge/pgedge-storebench/internal/store/mongodb"
	_ "github.com/pgEdge/pgedge-storebench/internal/store/postgres"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
