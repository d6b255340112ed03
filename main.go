// The main package for the headlinewatch executable.
package main

import (
	"github.com/mediawatch/headlinewatch/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
