// Package pluginhost loads provider plugins from Go shared objects and
// runs their per-plugin task, bridging the untagged outbound channel
// each plugin owns into the shared, id-tagged stream the Event Loop
// selects on (spec.md §4.3).
//
// Grounded on the streamspace plugin system's dynamic-loading half
// (internal/plugins/discovery.go: plugin.Open, well-known exported
// factory symbol, .so directory scan) generalized from an in-process
// HTTP-plugin model to a channel-isolated provider model.
package pluginhost

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/projekt-utopia/uCore/internal/apperrors"
	"github.com/projekt-utopia/uCore/internal/pluginapi"
)

// TaskDeath is reported to the Event Loop when a plugin's Thread call
// returns, whether self-reported or crashed (spec.md §4.3).
type TaskDeath struct {
	PluginID string
	Reason   string
	Err      error
}

type loadedPlugin struct {
	id     string
	module pluginapi.Module
	info   pluginapi.ModuleInfo
	toCore chan pluginapi.ToCoreEvent
	toMod  chan pluginapi.ToPluginEvent
}

// Host owns every loaded plugin's module object and task channels for
// the lifetime of the core (spec.md §3 "Ownership"). The *plugin.Plugin
// returned by plugin.Open is not kept; Go never unloads an opened
// plugin, so its code stays mapped for the whole process. It is populated
// once at startup by Load and then only read from the Event Loop.
type Host struct {
	log zerolog.Logger

	mu      sync.Mutex // guards plugins during Load; the Event Loop is the only other reader afterward
	plugins map[string]*loadedPlugin

	// Outbound is the fan-in of every plugin's tagged events — the
	// Event Loop's "plugin messages" source.
	Outbound chan pluginapi.FromPlugin
	// Deaths is the Event Loop's "plugin-task deaths" source.
	Deaths chan TaskDeath
}

// New builds an empty Host. outboundBuffer/deathBuffer size the fan-in
// channels shared across every loaded plugin.
func New(log zerolog.Logger, outboundBuffer, deathBuffer int) *Host {
	return &Host{
		log:      log,
		plugins:  make(map[string]*loadedPlugin),
		Outbound: make(chan pluginapi.FromPlugin, outboundBuffer),
		Deaths:   make(chan TaskDeath, deathBuffer),
	}
}

// Load scans dir for .so files, opens each, resolves the well-known
// ModuleCreate symbol, checks its ABI, calls Init with db, and spawns
// its task. A single plugin's failure is logged and skipped; it never
// aborts the rest of the scan (spec.md §4.3, §7 PluginLoad policy).
func (h *Host) Load(dir string, db pluginapi.DBHandle) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("pluginhost: reading plugin dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".so") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := h.loadOne(path, db); err != nil {
			h.log.Error().Err(err).Str("path", path).Msg("skipping plugin")
		}
	}
	return nil
}

func (h *Host) loadOne(path string, db pluginapi.DBHandle) error {
	lib, err := plugin.Open(path)
	if err != nil {
		return apperrors.New(apperrors.ClassPluginLoad, "Error opening plugin library", err)
	}

	sym, err := lib.Lookup(pluginapi.CreateSymbol)
	if err != nil {
		return apperrors.New(apperrors.ClassPluginLoad, "Error resolving plugin entry point", err)
	}
	create, ok := sym.(func() pluginapi.Module)
	if !ok {
		return apperrors.New(apperrors.ClassPluginLoad, "Error resolving plugin entry point",
			fmt.Errorf("%s has unexpected signature", pluginapi.CreateSymbol))
	}

	return h.adopt(create(), db)
}

// adopt runs ABI checking, Init, registration, and task spawn for an
// already-constructed module. Split out from loadOne so tests can drive
// it directly with a fake Module, without touching the filesystem or
// Go's plugin loader.
func (h *Host) adopt(mod pluginapi.Module, db pluginapi.DBHandle) error {
	if mod.AbiVersion() != pluginapi.ABIVersion {
		return apperrors.New(apperrors.ClassPluginLoad, "Error checking plugin ABI version",
			fmt.Errorf("%w: plugin reports %q, core expects %q", apperrors.ErrModuleABI, mod.AbiVersion(), pluginapi.ABIVersion))
	}

	if err := mod.Init(db); err != nil {
		return apperrors.New(apperrors.ClassPluginLoad, "Error initializing plugin", err)
	}

	lp := &loadedPlugin{
		id:     mod.ID(),
		module: mod,
		info:   mod.ModuleInfo(),
		toCore: make(chan pluginapi.ToCoreEvent, 16),
		toMod:  make(chan pluginapi.ToPluginEvent, 16),
	}

	h.mu.Lock()
	h.plugins[lp.id] = lp
	h.mu.Unlock()

	h.spawn(lp)
	return nil
}

// spawn runs the plugin's Thread, forwarding every event it sends on
// its private channel to Host.Outbound tagged with its plugin id — the
// "tagged at the sending end" contract of spec.md §4.3.
func (h *Host) spawn(lp *loadedPlugin) {
	go func() {
		forwarderDone := make(chan struct{})
		go func() {
			defer close(forwarderDone)
			for ev := range lp.toCore {
				h.Outbound <- pluginapi.FromPlugin{PluginID: lp.id, Event: ev}
			}
		}()

		id, reason, err := lp.module.Thread(lp.toCore, lp.toMod)
		close(lp.toCore)
		<-forwarderDone

		if id == "" {
			id = lp.id
		}
		h.Deaths <- TaskDeath{PluginID: id, Reason: reason, Err: err}
	}()
}

// Get looks up a loaded plugin by its static id (spec.md §4.3 "get").
func (h *Host) Get(id string) (pluginapi.Module, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	lp, ok := h.plugins[id]
	if !ok {
		return nil, apperrors.New(apperrors.ClassLibrarySemantic, "Error looking up module", apperrors.ErrModuleNotAvailable)
	}
	return lp.module, nil
}

// GetOwned looks up a loaded plugin by an owned (frontend-originating)
// id string (spec.md §4.3 "get_owned"). In Go the lookup is identical
// to Get; the distinction in the original design is about string
// ownership, which Go's garbage collector makes moot.
func (h *Host) GetOwned(id string) (pluginapi.Module, error) {
	return h.Get(id)
}

// Send delivers ev to the named plugin's inbound channel
// (spec.md §4.7/§4.4 dispatch of LaunchLibraryItem, RequestPreferenceDiag,
// PreferenceDiagUpdate).
func (h *Host) Send(id string, ev pluginapi.ToPluginEvent) error {
	h.mu.Lock()
	lp, ok := h.plugins[id]
	h.mu.Unlock()
	if !ok {
		return apperrors.New(apperrors.ClassLibrarySemantic, "Error dispatching to module", apperrors.ErrModuleNotAvailable)
	}
	lp.toMod <- ev
	return nil
}

// ModuleInfoFor satisfies library.ModuleInfoProvider, letting the
// Library Index stamp a new ItemProvider with its plugin's display
// metadata at insert time (spec.md §4.4).
func (h *Host) ModuleInfoFor(pluginID string) (pluginapi.ModuleInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	lp, ok := h.plugins[pluginID]
	if !ok {
		return pluginapi.ModuleInfo{}, false
	}
	return lp.info, true
}

// ModuleList returns every loaded plugin's info, for the supplemented
// GetModuleList/ResponseModuleList round trip (SPEC_FULL.md §4).
func (h *Host) ModuleList() []pluginapi.ModuleInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]pluginapi.ModuleInfo, 0, len(h.plugins))
	for _, lp := range h.plugins {
		out = append(out, lp.info)
	}
	return out
}

// Deinit calls Deinit on every loaded plugin, best-effort, during
// shutdown.
func (h *Host) Deinit() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, lp := range h.plugins {
		lp.module.Deinit()
	}
}
