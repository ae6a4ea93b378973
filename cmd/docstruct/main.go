package main

import "github.com/dgallion1/docstruct/internal/cli"

func main() {
	cli.Execute()
}
