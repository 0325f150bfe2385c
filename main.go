package main

import "github.com/CosmoTheDev/tasknotify/cmd"

func main() {
	cmd.Execute()
}
