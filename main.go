package main

import "github.com/honganh1206/relay/commands"

func main() {
	commands.Execute()
}
