// Command repbook manages a local workout and measurement log.
package main

import "github.com/mesh-intelligence/repbook/internal/cli"

func main() {
	cli.Execute()
}
