// Package cli provides CLI output formatting for Kotae.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/kotae/internal/ask"
	"github.com/hyperjump/kotae/internal/compiler"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch s {
	case "", "text":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// WriteAnswer writes an answer to w in the given format.
func WriteAnswer(w io.Writer, answer *ask.Answer, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}
	fmt.Fprintln(w, answer.Content)
	if answer.UsedRAG && len(answer.Sources) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Sources:")
		for _, src := range answer.Sources {
			fmt.Fprintf(w, "  - %s\n", src)
		}
	}
	if !answer.UsedRAG {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "(answered without document context)")
	}
	return nil
}

// WriteStats writes corpus statistics to w in the given format.
func WriteStats(w io.Writer, stats *compiler.Stats, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	fmt.Fprintf(w, "documents:         %d   # uploaded source documents\n", stats.TotalDocuments)
	fmt.Fprintf(w, "chunks:            %d   # embedded text chunks\n", stats.TotalChunks)
	fmt.Fprintf(w, "vector_store:      %s\n", stats.VectorStoreType)
	if stats.LastCompiled != "" {
		fmt.Fprintf(w, "last_compiled:     %s\n", stats.LastCompiled)
	} else {
		fmt.Fprintf(w, "last_compiled:     never\n")
	}
	fmt.Fprintf(w, "disk_usage_bytes:  %d\n", stats.DiskUsageBytes)
	return nil
}

// WriteCompileResult writes a compile result to w in the given format.
func WriteCompileResult(w io.Writer, result *compiler.Result, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Fprintf(w, "Compiled %d document(s) into %d chunk(s) (%s)\n",
		result.Documents, result.Chunks, result.Store)
	return nil
}
