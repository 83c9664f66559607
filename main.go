package main

import "ccload/cmd"

func main() {
	cmd.Execute()
}
