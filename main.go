package main

import "github.com/testenv/testenv/cmd"

func main() {
	cmd.Execute()
}
