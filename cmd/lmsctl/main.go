// Command lmsctl runs operational tasks against the LMS database and deployments.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
