package main

import "github.com/FluidXR/adbinfo/cmd"

func main() {
	cmd.Execute()
}
