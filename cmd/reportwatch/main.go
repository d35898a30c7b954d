package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/deeres/gateway/internal/poller"
)

var errNoTopic = errors.New("a non-empty topic or a job id is required")

// start begins tracking: watching when a job id is given, otherwise
// submitting the topic. A blank topic is rejected here instead of
// becoming a silent no-op that would leave the snapshot loop waiting
// on a stream that never starts.
func start(ctx context.Context, tracker *poller.Tracker, topic, jobID string) error {
	if jobID != "" {
		return tracker.Watch(ctx, jobID)
	}
	if strings.TrimSpace(topic) == "" {
		return errNoTopic
	}
	return tracker.Submit(ctx, topic, nil)
}

// reportwatch submits a research topic to a gateway (or attaches to an
// existing job) and prints stage-labelled progress until the job ends.
func main() {
	gatewayURL := flag.String("gateway", "http://localhost:3000", "gateway base URL")
	topic := flag.String("topic", "", "research topic to submit")
	jobID := flag.String("job", "", "existing job id to watch instead of submitting")
	token := flag.String("token", "", "bearer token when the gateway requires auth")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		cancel()
	}()

	source := poller.NewGatewayClient(*gatewayURL, *token)
	tracker := poller.NewTracker(source, poller.Options{})
	defer tracker.Close()

	if err := start(ctx, tracker, *topic, *jobID); err != nil {
		if errors.Is(err, errNoTopic) {
			fmt.Fprintln(os.Stderr, "usage: reportwatch -topic <topic> | -job <job-id> [-gateway <url>]")
			os.Exit(2)
		}
		log.Fatalf("Failed to start: %v", err)
	}

	lastStage := -1
	for snap := range tracker.Snapshots() {
		switch snap.State {
		case poller.StateSubmitting:
			fmt.Println("Submitting report request...")

		case poller.StatePolling:
			if snap.Stage != lastStage {
				fmt.Printf("[%s] stage %d/%d: %s (%.0f%%)\n",
					snap.Elapsed.Round(time.Second), snap.Stage+1, poller.StageCount, snap.StageLabel, snap.Progress*100)
				lastStage = snap.Stage
			}

		case poller.StateCompleted:
			fmt.Printf("\nReport completed in %s (job %s)\n\n", snap.Elapsed.Round(time.Second), snap.JobID)
			if snap.Report != nil {
				fmt.Println(snap.Report.Content)
			}
			return

		case poller.StateFailed:
			fmt.Fprintf(os.Stderr, "\nReport failed: %s\n", snap.Detail)
			os.Exit(1)
		}
	}
}
