// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

// Command gen-schema generates the task request JSON Schema files.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/taskhub/taskhub/internal/task"
)

func main() {
	schemas := []struct {
		name     string
		generate func() ([]byte, error)
	}{
		{"task-create.schema.json", task.GenerateCreateSchema},
		{"task-update.schema.json", task.GenerateUpdateSchema},
	}

	if err := os.MkdirAll("schemas", 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}

	for _, s := range schemas {
		data, err := s.generate()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating schema: %v\n", err)
			os.Exit(1)
		}

		outPath := filepath.Join("schemas", s.name)
		if err := os.WriteFile(outPath, data, 0o600); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Generated %s\n", outPath)
	}
}
