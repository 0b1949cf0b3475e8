// Command ucg_info is the diagnostic-only CLI of §6: it never opens a
// transport or joins a collective, it only reports what the local
// build and configuration would do. It follows the repo's own
// cobra-subcommand CLI layout (cmd/cli/cmd: root.go plus one file per
// verb) rather than a single flag bag, since each diagnostic is
// independent and takes no shared arguments.
package main

import "github.com/ucg-engine/cmd/ucg_info/cmd"

func main() {
	cmd.Execute()
}
