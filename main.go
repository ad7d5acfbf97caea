package main

import "prospectus/internal/cli"

func main() {
	cli.Execute()
}
