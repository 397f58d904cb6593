package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sportsbook/cmd"

	log "github.com/sirupsen/logrus"
)

const usage = `usage: sportsbook [command]

commands:
  serve                  run the API and the settlement poller (default)
  migrate up             apply pending schema migrations
  migrate down [steps]   roll back migrations, one step unless given
  migrate status         print the schema version`

func main() {
	command, args := "serve", []string(nil)
	if len(os.Args) > 1 {
		command, args = os.Args[1], os.Args[2:]
	}

	var err error
	switch command {
	case "serve":
		err = serve()
	case "migrate":
		err = cmd.Migrate(args)
	case "help", "-h", "--help":
		fmt.Println(usage)
		return
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		log.WithField("command", command).WithError(err).Fatal("sportsbook exited with an error")
	}
}

// serve runs until SIGINT or SIGTERM cancels the context
func serve() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return cmd.Run(ctx)
}
