package main

import "bqstats/cmd"

func main() {
	cmd.Execute()
}
