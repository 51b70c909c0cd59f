package task

import (
	"context"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	cron "github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"assistant-cli/history"
	"assistant-cli/ollama"
	"assistant-cli/option"
	"assistant-cli/util"
)

const (
	defaultRequestsPerMinute = 6
	reloadDebounce           = 500 * time.Millisecond
)

// Runner loads a task file, fires unscheduled tasks once, and keeps the
// scheduled ones on a shared cron. All requests go through one rate limiter
// so a burst of schedules cannot swamp the server.
type Runner struct {
	cfg      option.Config
	store    *history.Store
	taskPath string

	mu        sync.Mutex
	cron      *cron.Cron
	client    *ollama.Client
	limiter   *rate.Limiter
	scheduled int
}

func NewRunner(cfg option.Config, store *history.Store, taskPath string) *Runner {
	return &Runner{cfg: cfg, store: store, taskPath: taskPath}
}

// Start loads the task file and begins execution. It reports whether any
// task remains scheduled, in which case the caller should stay resident.
func (r *Runner) Start(ctx context.Context) (bool, error) {
	tf, err := option.LoadTaskFile(r.taskPath)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	oneshots := r.applyLocked(tf)
	scheduled := r.scheduled
	client := r.client
	r.mu.Unlock()

	var firstErr error
	for _, pt := range oneshots {
		if err := pt.Do(ctx, client); err != nil {
			log.Printf("task failed: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if scheduled == 0 {
		return false, firstErr
	}
	return true, nil
}

// applyLocked swaps in the schedule from tf and returns the tasks that
// should run immediately. Callers hold r.mu.
func (r *Runner) applyLocked(tf *option.TaskFile) []*PromptTask {
	r.stopLocked()

	host := r.cfg.OllamaHost
	rpm := defaultRequestsPerMinute
	if tf.Client != nil {
		if tf.Client.Host != "" {
			host = tf.Client.Host
		}
		if tf.Client.RequestsPerMinute > 0 {
			rpm = tf.Client.RequestsPerMinute
		}
	}
	r.client = ollama.NewClient(host)
	r.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	r.cron = cron.New(cron.WithSeconds())
	r.scheduled = 0

	client := r.client
	var oneshots []*PromptTask
	for _, opt := range tf.Tasks {
		pt := NewPromptTask(opt, r.cfg, r.limiter, r.store)
		if !opt.Scheduled() {
			oneshots = append(oneshots, pt)
			continue
		}
		spec := opt.CronTime
		if opt.At != "" {
			var err error
			spec, err = util.DailyCronSpec(opt.At)
			if err != nil {
				log.Printf("task %s has invalid At time, skipping: %v", opt.Name, err)
				continue
			}
		}
		name := opt.Name
		task := pt
		if _, err := r.cron.AddFunc(spec, func() {
			log.Printf("task %s firing", name)
			if err := task.Do(context.Background(), client); err != nil {
				log.Printf("task failed: %v", err)
			}
		}); err != nil {
			log.Printf("failed to add cron job for task %s: %v", name, err)
			continue
		}
		log.Printf("task %s scheduled (%s)", name, spec)
		r.scheduled++
	}

	if r.scheduled > 0 {
		r.cron.Start()
	}
	return oneshots
}

func (r *Runner) stopLocked() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
		r.cron = nil
	}
}

// Stop halts the scheduler and waits for a running job to return.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

// ScheduledCount reports how many tasks are currently on the cron.
func (r *Runner) ScheduledCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scheduled
}

// Reload swaps in the current content of the task file. A file that fails to
// parse keeps the previous schedule. One-shot tasks are not re-run on reload.
func (r *Runner) Reload() {
	tf, err := option.LoadTaskFile(r.taskPath)
	if err != nil {
		log.Printf("failed to reload task file, keeping previous schedule: %v", err)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if skipped := r.applyLocked(tf); len(skipped) > 0 {
		log.Printf("reload skipped %d unscheduled task(s)", len(skipped))
	}
	log.Printf("task file reloaded, %d task(s) scheduled", r.scheduled)
}

// Watch blocks watching the task file for changes until ctx is canceled,
// reloading after a debounce window. The parent directory is watched so
// editors that replace the file are still seen.
func (r *Runner) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(r.taskPath)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	target := filepath.Clean(r.taskPath)
	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
				timerC = timer.C
			} else {
				timer.Reset(reloadDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch error: %v", err)
		case <-timerC:
			timer = nil
			timerC = nil
			log.Printf("task file changed, reloading")
			r.Reload()
		}
	}
}
