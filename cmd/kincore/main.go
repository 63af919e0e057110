// Command kincore serves and queries kinship trees.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "kincore:", err)
		os.Exit(1)
	}
}
