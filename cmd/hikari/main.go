// hikari is the single binary for all node and server roles: encrypt,
// decrypt, dry-run, daemon, server, and agent.
package main

import "github.com/theinhumaneme/hikari/cli"

func main() {
	cli.Execute()
}
