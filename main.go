// Command gotrpo performs offline TRPO updates on recorded batches of
// experience. Each batch file given on the command line is a JSON
// encoded trajectory.Batch and receives a single update, in order:
//
//	gotrpo -config run.yaml batch1.json batch2.json ...
//
// Every run is stored in its own directory, named by a random run ID,
// holding the resolved configuration, checkpoints, and statistics.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/samuelfneumann/gotrpo/agent/trpo"
	"github.com/samuelfneumann/gotrpo/config"
	"github.com/samuelfneumann/gotrpo/experiment/checkpointer"
	"github.com/samuelfneumann/gotrpo/metrics"
	"github.com/samuelfneumann/gotrpo/params"
	"github.com/samuelfneumann/gotrpo/trajectory"
	"github.com/samuelfneumann/gotrpo/utils/progressbar"
)

func main() {
	configFile := flag.String("config", "", "YAML run configuration")
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatalf("no batch files given")
	}
	c, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("could not load configuration: %v", err)
	}

	if err := run(context.Background(), c, flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, c *config.Config, batches []string) error {
	runID := uuid.New().String()
	if err := os.MkdirAll(filepath.Join(c.RunDir, runID), 0o755); err != nil {
		return fmt.Errorf("run: could not create run directory: %v", err)
	}
	if err := c.Dump(c.Path(runID, "config.yaml")); err != nil {
		return fmt.Errorf("run: %v", err)
	}

	t, err := c.Online().Build(c.Features, c.Actions, c.Seed)
	if err != nil {
		return fmt.Errorf("run: %v", err)
	}
	defer t.Policy().Close()
	defer t.ValueFn().Close()

	stores := []*params.Store{t.Policy().Params(), t.ValueFn().Params()}
	if c.Restore != "" {
		if err := checkpointer.Load(c.Restore, stores...); err != nil {
			return fmt.Errorf("run: %v", err)
		}
		log.Printf("restored parameters from %v", c.Restore)
	}

	sink, err := sinks(ctx, c, runID)
	if err != nil {
		return fmt.Errorf("run: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			log.Printf("could not close metrics: %v", err)
		}
	}()

	filename := checkpointer.FilenameEnumerator(0,
		c.Path(runID, "checkpoint"), ".bin")
	check := checkpointer.NewNIter(c.CheckpointEvery, filename, stores...)

	log.Printf("starting run %v with %v batches", runID, len(batches))
	bar := progressbar.NewManualProgressBar(os.Stderr, 50, len(batches))
	for _, name := range batches {
		b, err := trajectory.Load(name)
		if err != nil {
			return fmt.Errorf("run: %v", err)
		}

		stats, err := t.Update(b)
		if trpo.IsNumericalInstability(err) {
			return fmt.Errorf("run: update on %v diverged: %v", name, err)
		} else if err != nil {
			return fmt.Errorf("run: update on %v failed: %v", name, err)
		}
		if err := sink.Record(stats.Iteration, stats.Map()); err != nil {
			return fmt.Errorf("run: %v", err)
		}
		if err := check.Checkpoint(t.Iteration()); err != nil {
			return fmt.Errorf("run: %v", err)
		}

		bar.Increment()
		bar.Display()
	}
	fmt.Fprintln(os.Stderr)

	final := c.Path(runID, "final.bin")
	if err := checkpointer.Save(final, stores...); err != nil {
		return fmt.Errorf("run: %v", err)
	}
	log.Printf("run %v finished after %v updates, parameters saved to %v",
		runID, t.Iteration(), final)
	return nil
}

// sinks returns the metrics sinks enabled in c
func sinks(ctx context.Context, c *config.Config,
	runID string) (metrics.Sink, error) {
	var s []metrics.Sink
	if c.Metrics.Log {
		s = append(s, metrics.NewLog(log.Default()))
	}
	if c.Metrics.Gob != "" {
		s = append(s, metrics.NewGob(c.Path(runID, c.Metrics.Gob)))
	}
	if c.Metrics.SQLite != "" {
		db, err := metrics.NewSQLite(ctx, c.Path(runID, c.Metrics.SQLite),
			runID)
		if err != nil {
			return nil, fmt.Errorf("sinks: %v", err)
		}
		s = append(s, db)
	}
	return metrics.Multi(s...), nil
}
