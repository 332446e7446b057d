// Command storefront is a terminal client for the storefront shop backend.
package main

import "github.com/Sentinel-Gate/storefront/cmd/storefront/cmd"

func main() {
	cmd.Execute()
}
