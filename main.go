// The main package for the expertfinder executable.
package main

import (
	"github.com/jsv832/UoL-AI-Expert-Finder/cmd"
)

func main() {
	cmd.Execute()
}
