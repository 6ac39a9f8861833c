package main

import "github.com/brunobiangulo/docai/internal/cli"

func main() {
	cli.Execute()
}
