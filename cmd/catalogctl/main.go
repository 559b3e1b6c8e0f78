// Command catalogctl runs the catalog engine against a records file and
// prints trees, hops and views as JSON.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
