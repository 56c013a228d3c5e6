package main

import "github.com/itsmostafa/hierchunk/cmd"

func main() {
	cmd.Execute()
}
