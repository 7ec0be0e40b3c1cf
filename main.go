package main

import "fmreceiver/cmd"

func main() {
	cmd.Execute()
}
