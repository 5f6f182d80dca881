package main

import "github.com/CosmoTheDev/coursewatch/cmd"

func main() {
	cmd.Execute()
}
