package main

import (
	"github.com/rsdeploy/rsdeploy/cmd/rsdeploy/commands"
)

func main() {
	commands.Execute()
}
