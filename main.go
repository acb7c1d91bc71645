// The main package for the crunchbase-miner executable.
package main

import (
	"github.com/JakeFAU/crunchbase-miner/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
