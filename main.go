// The main package for the scrapegoat executable.
package main

import (
	"github.com/scrapegoat/scrapegoat/cmd"
)

func main() {
	cmd.Execute()
}
