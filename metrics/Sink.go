// Package metrics implements sinks for the named scalar statistics
// that learning algorithms emit once per update.
package metrics

import (
	"fmt"
	"log"
	"sort"
	"strings"
)

// Sink records named scalar statistics once per iteration
type Sink interface {
	Record(iteration int, stats map[string]float64) error
	Close() error
}

// Log implements a Sink that writes statistics to a logger, one line
// per iteration with statistics sorted by name
type Log struct {
	logger *log.Logger
}

// NewLog returns a new Log Sink. If logger is nil, the standard
// logger is used.
func NewLog(logger *log.Logger) *Log {
	if logger == nil {
		logger = log.Default()
	}
	return &Log{logger: logger}
}

// Record writes the statistics of an iteration to the logger
func (l *Log) Record(iteration int, stats map[string]float64) error {
	var line strings.Builder
	fmt.Fprintf(&line, "iteration %d |", iteration)
	for _, name := range sortedNames(stats) {
		fmt.Fprintf(&line, " %s: %.6g", name, stats[name])
	}
	l.logger.Print(line.String())
	return nil
}

// Close implements the Sink interface
func (l *Log) Close() error {
	return nil
}

// multi implements a Sink that forwards statistics to multiple Sinks
type multi struct {
	sinks []Sink
}

// Multi returns a Sink that records statistics to all sinks
func Multi(sinks ...Sink) Sink {
	return &multi{sinks: sinks}
}

// Record records the statistics to each Sink, stopping at the first
// error
func (m *multi) Record(iteration int, stats map[string]float64) error {
	for _, sink := range m.sinks {
		if err := sink.Record(iteration, stats); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all Sinks, returning the first error encountered
func (m *multi) Close() error {
	var firstErr error
	for _, sink := range m.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func sortedNames(stats map[string]float64) []string {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
