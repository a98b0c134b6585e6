package main

import "github.com/oshokin/obc-alarm/cmd/obc-ground/cmd"

func main() {
	cmd.Execute()
}
