package main

import "github.com/uofuseismo/cct-review/cmd"

func main() {
	cmd.Execute()
}
