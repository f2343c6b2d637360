package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devicelab-dev/droidprobe/pkg/dispatch"
	"github.com/devicelab-dev/droidprobe/pkg/report"
)

// DeviceWorker is one device pulling items from the shared queue.
type DeviceWorker struct {
	Serial string
	Worker *dispatch.Worker
}

// NewDeviceWorkers builds one worker per serial from base, each with its own
// adb client bound to that device.
func NewDeviceWorkers(base *dispatch.Worker, serials []string) []DeviceWorker {
	workers := make([]DeviceWorker, 0, len(serials))
	for _, serial := range serials {
		w := &dispatch.Worker{
			Registry:   base.Registry,
			Log:        base.Log,
			OutDir:     base.OutDir,
			SleepScale: base.SleepScale,
			Params:     base.Params,
			Prompt:     base.Prompt,
			History:    base.History,
			Recorder:   base.Recorder,
			Now:        base.Now,
			Shuffle:    base.Shuffle,
		}
		if base.ADB != nil {
			w.ADB = base.ADB.ForSerial(serial)
		}
		workers = append(workers, DeviceWorker{Serial: serial, Worker: w})
	}
	return workers
}

// workItem is an item and its index in the original list.
type workItem struct {
	item  Item
	index int
}

// ParallelRunner spreads items over several devices.
type ParallelRunner struct {
	workers     []DeviceWorker
	config      RunnerConfig
	outputMutex sync.Mutex
}

// NewParallelRunner creates a parallel runner with multiple device workers.
func NewParallelRunner(workers []DeviceWorker, config RunnerConfig) *ParallelRunner {
	return &ParallelRunner{
		workers: workers,
		config:  config,
	}
}

// Run executes items using a work queue pattern.
// All workers pull from the same queue until it is drained.
func (pr *ParallelRunner) Run(ctx context.Context, items []Item) (*RunResult, error) {
	if len(pr.workers) == 0 {
		return nil, fmt.Errorf("no workers available")
	}
	startTime := time.Now()

	workQueue := make(chan workItem, len(items))
	for i, it := range items {
		workQueue <- workItem{item: it, index: i}
	}
	close(workQueue)

	results := make([]CaseResult, len(items))
	for i, it := range items {
		results[i] = notRun(it, i)
	}
	var resultsMu sync.Mutex
	var wg sync.WaitGroup

	for i := range pr.workers {
		wg.Add(1)
		go func(w DeviceWorker) {
			defer wg.Done()
			first := true
			for wi := range workQueue {
				if ctx.Err() != nil {
					return
				}
				if !first {
					if err := wait(ctx, pr.config.CaseDelay); err != nil {
						return
					}
				}
				first = false

				pr.printf("[%d/%d] %s - ⚡ Started on %s\n", wi.index+1, len(items), wi.item, w.Serial)
				rep := w.Worker.Run(ctx, pr.config.request(wi.item))
				res := CaseResult{Item: wi.item, Index: wi.index, Serial: w.Serial, Report: rep}
				pr.printf("[%d/%d] %s - %s on %s (%s)\n", wi.index+1, len(items), wi.item,
					statusLabel(res.Status()), w.Serial, formatDuration(rep.Result.Duration.Milliseconds()))

				resultsMu.Lock()
				results[wi.index] = res
				resultsMu.Unlock()
			}
		}(pr.workers[i])
	}
	wg.Wait()

	out := buildRunResult(results, time.Since(startTime))
	return out, ctx.Err()
}

func (pr *ParallelRunner) printf(format string, args ...interface{}) {
	if pr.config.Out == nil {
		return
	}
	pr.outputMutex.Lock()
	defer pr.outputMutex.Unlock()
	fmt.Fprintf(pr.config.Out, format, args...)
}

// buildRunResult aggregates case results. duration is wall-clock time, not
// the sum of case durations.
func buildRunResult(results []CaseResult, duration time.Duration) *RunResult {
	out := &RunResult{
		Total:    len(results),
		Results:  results,
		Duration: duration,
	}
	for _, r := range results {
		switch r.Status() {
		case report.StatusPassed:
			out.Passed++
		case report.StatusFailed:
			out.Failed++
		case report.StatusSkipped:
			out.Skipped++
		}
	}
	if out.Failed > 0 {
		out.Status = report.StatusFailed
	} else {
		out.Status = report.StatusPassed
	}
	return out
}
