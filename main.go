package main

import "github.com/brogergvhs/comicdl/cmd"

func main() {
	cmd.Execute()
}
