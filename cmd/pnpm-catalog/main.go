// Package main is the entry point for the pnpm-catalog CLI.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/thoreinstein/pnpm-catalog/cmd/pnpm-catalog/commands"
	"github.com/thoreinstein/pnpm-catalog/internal/errors"
)

func main() {
	err := commands.Execute()
	if err == nil {
		return
	}

	var exitErr *errors.ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, color.RedString("Error:"), exitErr.Error())
		if exitErr.Err != nil && exitErr.Suggestion != "" {
			fmt.Fprintln(os.Stderr, color.New(color.Faint).Sprint(exitErr.Suggestion))
		}
	} else {
		fmt.Fprintln(os.Stderr, color.RedString("Error:"), err)
	}
	os.Exit(errors.ExitCode(err))
}
