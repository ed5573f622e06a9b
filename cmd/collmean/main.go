// Command collmean runs a group of cooperating workers that agree on a
// problem size, independently generate random values, and aggregate a
// single global average through collective operations. It also ships the
// benchmark, analysis and consistency-check harnesses built on the same
// protocol.
package main

import "os"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
