package main

import "github.com/oshokin/obc-alarm/cmd/obc-alarmd/cmd"

func main() {
	cmd.Execute()
}
