// Package worker runs the periodic maintenance jobs.
package worker

import (
	"time"

	"github.com/madflojo/tasks"

	"github.com/tomfle18/aiostreams/internal/logger"
	"github.com/tomfle18/aiostreams/internal/util"
)

type Worker struct {
	scheduler  *tasks.Scheduler
	shouldSkip func() bool
	Log        *logger.Logger
}

type WorkerConfig struct {
	Disabled          bool
	Executor          func(w *Worker) error
	Interval          time.Duration
	Log               *logger.Logger
	Name              string
	RunAtStartupAfter time.Duration
	ShouldSkip        func() bool
}

func NewWorker(conf *WorkerConfig) *Worker {
	if conf.Name == "" {
		panic("worker name cannot be empty")
	}
	if conf.Disabled {
		return nil
	}

	if conf.Log == nil {
		conf.Log = logger.Scoped("worker/" + conf.Name)
	}
	if conf.ShouldSkip == nil {
		conf.ShouldSkip = func() bool {
			return false
		}
	}

	log := conf.Log

	worker := &Worker{
		scheduler:  tasks.New(),
		shouldSkip: conf.ShouldSkip,
		Log:        log,
	}

	id, err := worker.scheduler.Add(&tasks.Task{
		Interval:          conf.Interval,
		RunSingleInstance: true,
		TaskFunc: func() (err error) {
			defer func() {
				if perr, stack := util.HandlePanic(recover(), true); perr != nil {
					err = perr
					log.Error("Worker Panic", "error", err, "stack", stack)
				}
			}()

			if worker.shouldSkip() {
				log.Debug("skipping")
				return nil
			}

			startedAt := time.Now()
			if err := conf.Executor(worker); err != nil {
				return err
			}
			log.Info("done", "duration", time.Since(startedAt).Round(time.Millisecond).String())
			return nil
		},
		ErrFunc: func(err error) {
			log.Error("Worker Failure", "error", err)
		},
	})
	if err != nil {
		panic(err)
	}

	log.Info("Started Worker", "id", id)

	if conf.RunAtStartupAfter != 0 {
		if task, err := worker.scheduler.Lookup(id); err == nil && task != nil {
			t := task.Clone()
			t.Interval = conf.RunAtStartupAfter
			t.RunOnce = true
			worker.scheduler.Add(t)
		}
	}

	return worker
}

// InitWorkers starts every background job and returns the stop function.
func InitWorkers() func() {
	workers := []*Worker{}

	if worker := InitPruneWorker(); worker != nil {
		workers = append(workers, worker)
	}

	return func() {
		for _, worker := range workers {
			worker.scheduler.Stop()
		}
	}
}
