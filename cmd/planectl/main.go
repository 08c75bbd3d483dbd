// Command planectl inspects plan data offline: it validates load
// responses, probes points and renders PNG previews without a server.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
