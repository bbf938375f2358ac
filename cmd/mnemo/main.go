package main

import (
	"fmt"
	"os"

	"github.com/mnemo-oss/mnemo/internal/cli"
	memErrors "github.com/mnemo-oss/mnemo/internal/errors"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if suggestion := memErrors.Suggestion(err); suggestion != "" {
			fmt.Fprintln(os.Stderr, "  →", suggestion)
		}
		os.Exit(1)
	}
}
