// This program performs administrative tasks against an in-process chain.
package main

import "github.com/ardanlabs/powchain/app/tooling/admin/cmd"

func main() {
	cmd.Execute()
}
