// Command rpcgate serves JSON-RPC 2.0 over HTTP.
package main

import "github.com/Sentinel-Gate/rpcgate/cmd/rpcgate/cmd"

func main() {
	cmd.Execute()
}
