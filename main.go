package main

import "github.com/clawrelay/clawrelay/cmd"

func main() {
	cmd.Execute()
}
