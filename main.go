// The main package for the review-scraper executable.
package main

import (
	"github.com/musicreview/scraper/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
