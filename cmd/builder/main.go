// Command builder resolves aliases from YAML manifests.
//
//	builder -f config/app.yaml list
//	builder -f config/app.yaml make logger
//	builder -f config/app.yaml has router
package main

import (
	"context"
	"fmt"
	"os"
)

const appName = "builder"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err.Error())
		os.Exit(1)
	}
}
