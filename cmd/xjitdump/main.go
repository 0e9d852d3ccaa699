// Command xjitdump builds one of a handful of canned demo functions through
// unicompiler, runs it through allocation, writeback and (on amd64)
// encoding, and prints the node listing and, on amd64, the resulting machine
// code — a debugging aid for inspecting what the façade actually emits for
// a given verb/arch/width combination.
package main

import (
	"fmt"
	"os"
)

func main() {
	os.Exit(run(os.Stdout, os.Stderr, os.Args[1:]))
}

// run is split out from main for the purpose of unit testing, matching the
// doMain(stdOut, stdErr) pattern used elsewhere in this tree.
func run(stdout, stderr *os.File, args []string) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}
