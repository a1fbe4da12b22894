// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package main is the entry point for the kyco CLI.
package main

import (
	"kyco/cli/cmd"
)

func main() {
	cmd.Execute()
}
