/*
main.go - Application entry point

PURPOSE:
  Starts the inkflow commission ledger: HTTP server, one-off settlement and
  period export from the command line.

COMMANDS:
  serve                       HTTP server with graceful shutdown
  settle --studio [--as-of]   Assign unassigned rows by pay schedule
  export --period [--csv]     Print a period's ledger rows

STARTUP SEQUENCE:
  1. Load configuration (config.yaml, INKFLOW_* env)
  2. Build the zap logger
  3. Open the SQLite store
  4. Run the command

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the settlement scheduler
  2. Stop accepting new connections
  3. Wait for active requests (server.shutdown_timeout)
  4. Close database connection

EXAMPLES:
  # Serve with a file database
  INKFLOW_DATABASE_PATH=./data/inkflow.db ./inkflow-ledger serve

  # Settle one studio as of a date
  ./inkflow-ledger settle --studio studio-1 --as-of 2024-03-31

  # Export a period as CSV
  ./inkflow-ledger export --period 01HV... --csv > period.csv

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration keys
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
