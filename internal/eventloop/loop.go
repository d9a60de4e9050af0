// Package eventloop implements the Event Loop (spec.md §4.8): the single
// goroutine that fairly selects over the five event sources — internal
// futures (handshake results, child-process deaths, database death),
// new socket connections, frontend messages, plugin messages, and
// plugin-task deaths — and is the sole mutator of the Library Index,
// Frontend Registry, Preference Correlator, and child-process table.
//
// Go's select statement already selects pseudo-randomly among whichever
// cases are ready, which is exactly spec.md §4.8's "fair selection (no
// source may starve another)" requirement; no additional round-robin
// bookkeeping is needed to satisfy it.
package eventloop

import (
	"fmt"
	"net"
	"os"

	"github.com/rs/zerolog"

	"github.com/projekt-utopia/uCore/internal/apperrors"
	"github.com/projekt-utopia/uCore/internal/frontend"
	"github.com/projekt-utopia/uCore/internal/library"
	"github.com/projekt-utopia/uCore/internal/metrics"
	"github.com/projekt-utopia/uCore/internal/pluginapi"
	"github.com/projekt-utopia/uCore/internal/pluginhost"
	"github.com/projekt-utopia/uCore/internal/prefs"
	"github.com/projekt-utopia/uCore/internal/procwatch"
	"github.com/projekt-utopia/uCore/internal/wire"
)

// Host is the slice of *pluginhost.Host the loop needs to dispatch to
// plugins and stamp new providers. It is an interface (rather than the
// concrete type) so tests can drive the loop against a fake plugin host
// without loading a real shared object.
type Host interface {
	Send(id string, ev pluginapi.ToPluginEvent) error
	ModuleList() []pluginapi.ModuleInfo
	ModuleInfoFor(pluginID string) (pluginapi.ModuleInfo, bool)
}

// Loop ties every owned component together. It must only ever be driven
// by its own Run call — nothing else may touch the components it holds.
type Loop struct {
	log zerolog.Logger

	registry   *frontend.Registry
	host       Host
	idx        *library.Index
	watcher    *procwatch.Watcher
	correlator *prefs.Correlator

	handshakes chan frontend.HandshakeResult

	pluginOutbound <-chan pluginapi.FromPlugin
	pluginDeaths   <-chan pluginhost.TaskDeath
	newConns       <-chan net.Conn
	acceptErrs     <-chan error
	dbDeath        <-chan error
	quit           <-chan os.Signal
}

// New builds a Loop. pluginOutbound/pluginDeaths are a *pluginhost.Host's
// Outbound/Deaths fields; newConns/acceptErrs are fed by
// frontend.AcceptLoop; dbDeath is the database supervisor's AwaitExit
// running in its own goroutine; quit is fed by
// signal.Notify(..., syscall.SIGQUIT) — all wiring the caller
// (cmd/utopia-core) is responsible for.
func New(
	log zerolog.Logger,
	registry *frontend.Registry,
	host Host,
	pluginOutbound <-chan pluginapi.FromPlugin,
	pluginDeaths <-chan pluginhost.TaskDeath,
	idx *library.Index,
	watcher *procwatch.Watcher,
	correlator *prefs.Correlator,
	newConns <-chan net.Conn,
	acceptErrs <-chan error,
	dbDeath <-chan error,
	quit <-chan os.Signal,
) *Loop {
	return &Loop{
		log:            log,
		registry:       registry,
		host:           host,
		idx:            idx,
		watcher:        watcher,
		correlator:     correlator,
		handshakes:     make(chan frontend.HandshakeResult, 16),
		pluginOutbound: pluginOutbound,
		pluginDeaths:   pluginDeaths,
		newConns:       newConns,
		acceptErrs:     acceptErrs,
		dbDeath:        dbDeath,
		quit:           quit,
	}
}

// Run blocks, dispatching events until SIGQUIT is observed (clean exit,
// nil error) or the database dies (fatal, non-nil error) — spec.md §4.8
// "terminates on receipt of SIGQUIT or on database death".
func (l *Loop) Run() error {
	for {
		select {
		case <-l.quit:
			l.log.Info().Msg("event loop: SIGQUIT received, shutting down")
			return nil

		case err := <-l.dbDeath:
			l.log.Error().Err(err).Msg("event loop: database process died, shutting down")
			return apperrors.New(apperrors.ClassDatabaseFatal, "database process exited", err)

		case hr := <-l.handshakes:
			metrics.RecordEvent("handshake")
			l.handleHandshake(hr)

		case died := <-l.watcher.Deaths:
			metrics.RecordEvent("process_watcher")
			l.handleProcessDied(died)

		case conn := <-l.newConns:
			metrics.RecordEvent("accept")
			frontend.BeginHandshake(conn, l.handshakes)

		case err := <-l.acceptErrs:
			metrics.RecordEvent("accept")
			l.log.Error().Err(err).Msg("event loop: accept loop stopped")

		case msg := <-l.registry.Messages:
			metrics.RecordEvent("frontend")
			l.handleFrontendMessage(msg)

		case dis := <-l.registry.Disconnects:
			metrics.RecordEvent("frontend")
			l.registry.Remove(dis.Name)
			metrics.FrontendsConnected.Set(float64(l.registry.Len()))
			l.log.Info().Str("frontend", dis.Name).Err(dis.Err).Msg("frontend disconnected")

		case fp := <-l.pluginOutbound:
			metrics.RecordEvent("plugin")
			l.handlePluginEvent(fp)

		case td := <-l.pluginDeaths:
			metrics.RecordEvent("plugin_death")
			l.handleTaskDeath(td)
		}
	}
}

func (l *Loop) handleHandshake(hr frontend.HandshakeResult) {
	if hr.Err != nil {
		l.log.Warn().Err(hr.Err).Msg("handshake rejected")
		return
	}
	if err := l.registry.Insert(hr.Name, hr.Conn); err != nil {
		l.log.Error().Err(err).Str("frontend", hr.Name).Msg("registering frontend failed")
		return
	}
	metrics.FrontendsConnected.Set(float64(l.registry.Len()))
	l.log.Info().Str("frontend", hr.Name).Msg("frontend connected")
}

// handleProcessDied applies spec.md §4.5 "On ProcessDied": remove the
// table entry, remove Running(pid) from the reporting provider, and
// broadcast the item's updated snapshot.
func (l *Loop) handleProcessDied(d procwatch.Died) {
	pluginID, itemUUID, ok := l.watcher.Resolve(d.Pid)
	if !ok {
		pluginID, itemUUID = d.PluginID, d.ItemUUID
	}

	logEv := l.log.Info()
	if d.ExitCode != 0 {
		logEv = l.log.Warn()
	}
	logEv.Int("pid", d.Pid).Int("exit_code", d.ExitCode).Str("plugin", pluginID).Str("item", itemUUID).
		Msg("watched process exited")
	metrics.ChildProcessDeaths.Inc()

	if err := l.idx.UpdateState(itemUUID, pluginID, library.OpRemove, pluginapi.Running(d.Pid)); err != nil {
		l.log.Error().Err(err).Msg("clearing Running status after process death failed")
		return
	}
	l.broadcastUpdate(itemUUID)
}

func (l *Loop) handleFrontendMessage(msg frontend.InboundMessage) {
	name, uuid, action := msg.Name, msg.Event.UUID, msg.Event.Action

	switch action.Kind {
	case "GetGameLibrary":
		l.reply(name, uuid, wire.CoreAction{Kind: "ResponseGameLibrary", Library: l.idx.SnapshotAllShort()})

	case "GetFullGameLibrary":
		l.reply(name, uuid, wire.CoreAction{Kind: "ResponseFullGameLibrary", FullLibrary: l.idx.SnapshotAllFull()})

	case "GetGameDetails":
		full, err := l.idx.SnapshotFull(action.ItemUUID)
		if err != nil {
			l.replyError(name, uuid, err)
			return
		}
		l.reply(name, uuid, wire.CoreAction{Kind: "ResponseItemDetails", Details: full.Details})

	case "GameMethod":
		l.handleGameMethod(name, uuid, action.Method)

	case "RequestPreferenceDiag":
		if evicted := l.correlator.Request(action.PluginID, action.Scope, name, uuid); evicted {
			l.log.Warn().Str("plugin", action.PluginID).Msg("preference request evicted an outstanding one for the same scope")
		}
		if err := l.host.Send(action.PluginID, pluginapi.RequestPreferenceDiag{Scope: action.Scope}); err != nil {
			l.replyError(name, uuid, err)
		}

	case "PreferenceDiagUpdate":
		// spec.md §4.7: forwarded without waiting for a reply, so no
		// correlator entry and no response either way — except the
		// shape check below, which is SPEC_FULL.md §4's supplement and
		// rejects the update instead of forwarding garbage when a field
		// uuid is unrecognized or a value doesn't match its field's type.
		if err := l.correlator.ValidateUpdate(action.PluginID, action.Scope, action.Values); err != nil {
			l.replyError(name, uuid, apperrors.New(apperrors.ClassLibrarySemantic, "Error validating preference update", err))
			return
		}
		if err := l.host.Send(action.PluginID, pluginapi.PreferenceDiagUpdate{Scope: action.Scope, Values: action.Values}); err != nil {
			l.log.Error().Err(err).Str("plugin", action.PluginID).Msg("forwarding preference update failed")
		}

	case "GetModuleList":
		l.reply(name, uuid, wire.CoreAction{Kind: "ResponseModuleList", ModuleList: l.host.ModuleList()})

	default:
		l.log.Error().Str("kind", action.Kind).Str("frontend", name).Msg("unrecognized frontend action")
	}
}

func (l *Loop) handleGameMethod(name string, uuid *string, m wire.GameMethod) {
	if m.Unimplemented() {
		l.replyError(name, uuid, apperrors.New(apperrors.ClassLibrarySemantic,
			fmt.Sprintf("Error handling %s", m.Kind), fmt.Errorf("method not implemented in this version")))
		return
	}

	switch m.Kind {
	case "Launch":
		pluginID, err := l.idx.LaunchDefault(m.ItemUUID)
		if err != nil {
			l.replyError(name, uuid, err)
			return
		}
		l.dispatchLaunch(name, uuid, pluginID, m.ItemUUID)

	case "LaunchViaProvider":
		if err := l.idx.LaunchVia(m.ItemUUID, m.PluginID); err != nil {
			l.replyError(name, uuid, err)
			return
		}
		l.dispatchLaunch(name, uuid, m.PluginID, m.ItemUUID)

	case "ChangeSelectedProvider":
		if err := l.idx.ChangeActive(m.ItemUUID, m.PluginID); err != nil {
			l.replyError(name, uuid, err)
			return
		}
		// spec.md §8 scenario 4: the core replies with no Error; the
		// broadcast below is the only signal frontends see.
		l.broadcastUpdate(m.ItemUUID)
	}
}

// dispatchLaunch sends LaunchLibraryItem to pluginID. There is no direct
// ack: success is observed later as a Launched event (spec.md §8
// scenario 3).
func (l *Loop) dispatchLaunch(name string, uuid *string, pluginID, itemUUID string) {
	if err := l.host.Send(pluginID, pluginapi.LaunchLibraryItem{ItemUUID: itemUUID}); err != nil {
		l.replyError(name, uuid, err)
	}
}

func (l *Loop) handlePluginEvent(fp pluginapi.FromPlugin) {
	switch ev := fp.Event.(type) {
	case pluginapi.AddLibraryItem:
		if err := l.idx.Insert(fp.PluginID, ev.Item, l.host); err != nil {
			l.log.Error().Err(err).Str("plugin", fp.PluginID).Stringer("item", ev.Item).Msg("library insert failed")
			return
		}
		metrics.LibraryItems.Set(float64(l.idx.Len()))
		l.broadcastUpdate(ev.Item.UUID)

	case pluginapi.Launched:
		if err := l.idx.UpdateState(ev.ItemUUID, fp.PluginID, library.OpAdd, pluginapi.Running(ev.Pid)); err != nil {
			l.log.Error().Err(err).Str("plugin", fp.PluginID).Str("item", ev.ItemUUID).Msg("recording launch failed")
			return
		}
		l.watcher.Launch(fp.PluginID, ev.ItemUUID, ev.Pid)
		l.broadcastUpdate(ev.ItemUUID)

	case pluginapi.PreferenceDiagResponse:
		l.correlator.RecordDialog(fp.PluginID, ev.Scope, ev.Dialog)
		frontendID, correlationID, ok := l.correlator.Resolve(fp.PluginID, ev.Scope)
		if !ok {
			l.log.Debug().Str("plugin", fp.PluginID).Msg("preference response dropped: no matching request")
			return
		}
		action := wire.CoreAction{Kind: "PreferenceDiagResponse", PluginID: fp.PluginID, Scope: ev.Scope, Dialog: ev.Dialog}
		if err := l.registry.Write(frontendID, wire.NewCoreEvent(correlationID, action)); err != nil {
			l.log.Error().Err(err).Str("frontend", frontendID).Msg("delivering preference response failed")
		}

	default:
		l.log.Error().Str("plugin", fp.PluginID).Msg("unrecognized plugin event type")
	}
}

func (l *Loop) handleTaskDeath(td pluginhost.TaskDeath) {
	outcome := "self-reported"
	logEv := l.log.Info()
	if td.Err != nil {
		outcome = "error"
		logEv = l.log.Error().Err(td.Err)
	}
	metrics.RecordPluginDeath(td.PluginID, outcome)
	logEv.Str("plugin", td.PluginID).Str("reason", td.Reason).Msg("plugin task ended")
}

// broadcastUpdate sends the current snapshot of uuid to every frontend
// (spec.md §6 "ResponseGameUpdate — broadcast on any status or
// active-provider change"). A provider being added by an insert is
// treated as such a change too, since it is exactly the kind of update a
// connected frontend's library view needs to reflect.
func (l *Loop) broadcastUpdate(uuid string) {
	compact, err := l.idx.SnapshotShort(uuid)
	if err != nil {
		l.log.Error().Err(err).Str("item", uuid).Msg("snapshotting item for broadcast failed")
		return
	}
	errs := l.registry.Broadcast(wire.NewCoreEvent(nil, wire.CoreAction{Kind: "ResponseGameUpdate", Update: compact}))
	if len(errs) == 0 {
		metrics.RecordBroadcast("ok")
		return
	}
	metrics.RecordBroadcast("partial_error")
	for _, e := range errs {
		l.log.Error().Err(e).Msg("broadcast write failed")
	}
}

func (l *Loop) reply(name string, uuid *string, action wire.CoreAction) {
	if err := l.registry.Write(name, wire.NewCoreEvent(uuid, action)); err != nil {
		l.log.Error().Err(err).Str("frontend", name).Msg("replying to frontend failed")
	}
}

// replyError reports err to name as a CoreActions.Error, echoing uuid
// (spec.md §4.9 "Library semantic ... reported to the requesting
// frontend"). The tag/detail split comes from apperrors.CoreError when
// err carries one; otherwise a generic tag is used.
func (l *Loop) replyError(name string, uuid *string, err error) {
	tag, detail := "Error", err.Error()
	var coreErr *apperrors.CoreError
	if ce, ok := err.(*apperrors.CoreError); ok {
		coreErr = ce
	}
	if coreErr != nil {
		tag, detail = coreErr.Tag, coreErr.Detail()
	}
	l.reply(name, uuid, wire.CoreAction{Kind: "Error", ErrTag: tag, ErrDetail: detail})
}
