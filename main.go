package main

import "github.com/mkoval/refinex/cmd"

func main() {
	cmd.Execute()
}
