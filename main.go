package main

import "corp/sysrecon/commands"

func main() {
	commands.Execute()
}
