// Package procwatch implements the Process Watcher (spec.md §4.5): on a
// plugin's Launched signal it records the pid and spawns a blocking wait
// that reports the exit back to the Event Loop. Marking the provider
// Running is left to the Event Loop.
//
// Grounded on the teacher's connection-tracker shape (a goroutine
// blocking on a long-lived external resource and yielding a single
// terminal event back to its owner) generalized from a ticker-driven
// poll to a blocking os.Process.Wait.
package procwatch

import (
	"os"

	"github.com/rs/zerolog"
)

// Died is yielded once a watched pid has exited (spec.md §4.5).
type Died struct {
	Pid      int
	PluginID string
	ItemUUID string
	ExitCode int
}

// entry is the pid → (plugin-id, item-uuid) table spec.md §4.5 requires.
type entry struct {
	pluginID string
	itemUUID string
}

// Watcher owns the pid table; like the Library Index, it is exclusively
// mutated by the Event Loop (spec.md §3 "Ownership").
type Watcher struct {
	log     zerolog.Logger
	entries map[int]entry
	Deaths  chan Died
}

// New builds an empty Watcher. deathBuffer sizes the shared Deaths
// channel every spawned wait-task reports onto.
func New(log zerolog.Logger, deathBuffer int) *Watcher {
	return &Watcher{
		log:     log,
		entries: make(map[int]entry),
		Deaths:  make(chan Died, deathBuffer),
	}
}

// Launch records pid as belonging to (pluginID, itemUUID) and spawns the
// blocking wait task (spec.md §4.5 steps a–c). The caller is responsible
// for adding Running(pid) to the provider's status set.
func (w *Watcher) Launch(pluginID, itemUUID string, pid int) {
	w.entries[pid] = entry{pluginID: pluginID, itemUUID: itemUUID}

	go func() {
		exitCode := w.wait(pid)
		w.Deaths <- Died{Pid: pid, PluginID: pluginID, ItemUUID: itemUUID, ExitCode: exitCode}
	}()
}

// wait blocks until pid terminates and returns its exit code. Since Go's
// os.Process.Wait only succeeds for a child of this process, a plugin
// that launches an unrelated pid will simply never resolve here — that
// matches the original design's assumption that Launched always names a
// child the plugin itself spawned.
func (w *Watcher) wait(pid int) int {
	proc, err := os.FindProcess(pid)
	if err != nil {
		w.log.Error().Err(err).Int("pid", pid).Msg("process watcher: could not attach to pid")
		return -1
	}
	state, err := proc.Wait()
	if err != nil {
		w.log.Error().Err(err).Int("pid", pid).Msg("process watcher: wait failed")
		return -1
	}
	return state.ExitCode()
}

// Resolve removes pid's table entry and returns the (plugin-id,
// item-uuid) it named, for the caller to remove the Running status and
// broadcast a ResponseGameUpdate (spec.md §4.5 "On ProcessDied").
func (w *Watcher) Resolve(pid int) (pluginID, itemUUID string, ok bool) {
	e, ok := w.entries[pid]
	if !ok {
		return "", "", false
	}
	delete(w.entries, pid)
	return e.pluginID, e.itemUUID, true
}

// Len reports how many processes are currently tracked.
func (w *Watcher) Len() int {
	return len(w.entries)
}
