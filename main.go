package main

import "github.com/edgefeed/signal-engine/cmd"

func main() {
	cmd.Execute()
}
