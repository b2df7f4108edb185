// Command partitionrun drives the partition executor from the command line:
// it can print the batch plan for a given input size, or expunge a set of
// resources from a store and report which worker handled each batch.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
