// Package main provides the entry point for the fuzic application.
package main

import cmd "github.com/toozej/fuzic/cmd/fuzic"

func main() {
	cmd.Execute()
}
