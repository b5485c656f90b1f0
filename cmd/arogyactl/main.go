// Command arogyactl inspects and verifies an Arogya Rakshak node.
package main

import "arogyarakshak/cli/cmd"

func main() {
	cmd.Execute()
}
