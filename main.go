package main

import "github.com/snpm-dev/snpm/cmd"

func main() {
	cmd.Execute()
}
