// Package main provides the roster-extract CLI, which runs enrollment and
// timetable extraction on local files and prints the result envelopes.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
