/*
main.go - Application entry point

PURPOSE:
  Starts the hours ledger. The binary has three subcommands:

    serve    HTTP API with graceful shutdown
    summary  print a month summary and the leave balance for one owner
    apply    apply an owner's saved bulk plan to a month

STARTUP SEQUENCE (shared by all subcommands):
  1. Load configuration (.env, environment, then flags)
  2. Build the logger
  3. Load locales; their substitute keywords feed the holiday resolver
  4. Open the store (sqlite, mongo or memory)
  5. Build the ledger

EXAMPLES:
  # Serve with a file database
  hours-ledger serve --db ./data/hours.db

  # Serve from MongoDB (change streams need a replica set)
  STORE=mongo MONGODB_URI=mongodb://localhost:27017/?replicaSet=rs0 hours-ledger serve

  # Fill March from the saved plan
  hours-ledger apply --owner me --month 2025-03

SEE ALSO:
  - config/config.go: environment keys
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Commands see a context that ends on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
