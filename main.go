package main

import "github.com/hackeros/hl/cmd"

func main() {
	cmd.Execute()
}
