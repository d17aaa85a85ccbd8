package main

import (
	"heartbeat-beacon/internal/cli"
)

func main() {
	cli.Execute()
}
