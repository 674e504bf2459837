// Command timetable inspects timetable documents and stores them in DynamoDB.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/jacentio/timetable/cmd/timetable/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := commands.NewRootCmd(&commands.App{}).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
