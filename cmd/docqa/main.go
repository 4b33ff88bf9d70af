package main

import "gwi.com/docqa/internal/cli"

func main() {
	cli.Execute()
}
