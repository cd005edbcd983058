package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Iron-Ham/tandem/internal/cmd"
	"github.com/Iron-Ham/tandem/internal/styles"
)

func main() {
	err := cmd.Execute()
	if err == nil {
		return
	}

	var exitErr *cmd.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	fmt.Fprintln(os.Stderr, styles.Failure(cmd.ErrorMessage(err)))
	os.Exit(1)
}
