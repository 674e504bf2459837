// Command cascade is the AWS Lambda function attached to the entity table
// stream. It propagates deletes from a timetable entity to its descendants.
//
// Configuration comes from TIMETABLE_* environment variables, plus the file
// named by TIMETABLE_CONFIG_FILE when set.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/timetable/internal/config"
	"github.com/jacentio/timetable/store"
	"github.com/jacentio/timetable/stream"
)

func main() {
	handler, err := setup(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "cascade: %v\n", err)
		os.Exit(1)
	}
	lambda.Start(handler.HandleCascadeDelete)
}

func setup(ctx context.Context) (*stream.Handler, error) {
	cfg, err := config.Load(os.Getenv("TIMETABLE_CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger(os.Stderr)

	client, err := cfg.DynamoDB(ctx)
	if err != nil {
		return nil, err
	}
	s := store.New(client, cfg.Store, store.WithLogger(logger))
	return stream.NewHandler(s, logger), nil
}
