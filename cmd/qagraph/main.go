// Command qagraph wires every component into one binary: an HTTP/SSE
// API, one or more workers, and a local debugging REPL, all sharing one
// broker/store/feedback backend chosen by configuration. The three run
// modes are exposed as cobra subcommands rather than flags, since each
// has a genuinely different lifecycle.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "qagraph:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:     "qagraph",
		Short:   "Multi-agent question-answering orchestrator",
		Version: version,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")

	root.AddCommand(newServeCommand(&configPath))
	root.AddCommand(newWorkerCommand(&configPath))
	root.AddCommand(newReplCommand(&configPath))

	return root
}
