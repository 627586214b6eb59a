package main

import "github.com/RyanBlaney/sonido-melodia/cmd"

func main() {
	cmd.Execute()
}
