package main

import "github.com/jmehdipour/lead-intake/cmd"

func main() {
	cmd.Execute()
}
