package main

import "editorial/api/cmd/editorialctl/commands"

func main() {
	commands.Execute()
}
