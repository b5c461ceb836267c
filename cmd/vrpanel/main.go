package main

import "github.com/nfrund/vrpanel/cmd/vrpanel/cmd"

func main() {
	cmd.Execute()
}
