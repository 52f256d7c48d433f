package main

import "ticketing/cmd"

func main() {
	cmd.Execute()
}
