package main

import "github.com/mcpcoder/coordinator/cmd"

func main() {
	cmd.Execute()
}
