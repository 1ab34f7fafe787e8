// The main package for the mini-league executable.
package main

import (
	"github.com/JakeFAU/mini-league/cmd"
)

func main() {
	cmd.Execute()
}
