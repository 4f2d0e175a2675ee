package main

import "github.com/BioHazard786/landrop/internal/cli"

func main() {
	cli.Execute()
}
