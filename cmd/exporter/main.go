package main

import "github.com/sachajw/dops-nimbus-note-exporter/internal/cli"

func main() {
	cli.Execute()
}
