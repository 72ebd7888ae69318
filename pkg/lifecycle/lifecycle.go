package lifecycle

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"github.com/wendizhou99-cell/Radar/pkg/radar"
	"github.com/wendizhou99-cell/Radar/pkg/radar_libraries/logger"
)

//Definition of the Module interface:
//This is the lifecycle contract implemented by every pipeline stage
//(receiver, processor, scheduler, display). Legality of a call sequence
//is enforced here and only here; there is no auto-repair of an invalid
//sequence.
type Module interface {
	//Initialize allocates resources and moves Uninitialized->Ready
	Initialize() error

	//Start begins processing, Ready->Running
	Start() error

	//Stop halts processing, Running->Ready (restartable)
	Stop() error

	//Pause suspends processing, Running->Paused
	Pause() error

	//Resume continues processing, Paused->Running
	Resume() error

	//Cleanup releases all resources and moves to Shutdown.
	//Idempotent; internal failures are logged, never returned.
	Cleanup() error

	//State returns the current lifecycle state
	State() radar.ModuleState

	//Name returns the module name for logging and registration
	Name() string
}

//Legal transition table. Error and Shutdown are reachable from anywhere
//and therefore not listed per-source.
var validTransitions = map[radar.ModuleState][]radar.ModuleState{
	radar.StateUninitialized: {radar.StateInitializing},
	radar.StateInitializing:  {radar.StateReady},
	radar.StateReady:         {radar.StateRunning},
	radar.StateRunning:       {radar.StateReady, radar.StatePaused},
	radar.StatePaused:        {radar.StateRunning},
}

type observerEntry struct {
	id       uint64
	callback radar.StateChangeCallback
}

//StateMachine holds the atomic module state and its observers.
//Stages embed one instance each; all state mutation goes through
//Transition so the table above is the single source of legality.
type StateMachine struct {
	name  string
	state *atomic.Uint32
	log   logger.Logger

	observersLock sync.Mutex
	observers     []observerEntry
	nextObsID     *atomic.Uint64
}

//NewStateMachine creates a machine in Uninitialized state.
//The logger is injected so test instances stay independent.
func NewStateMachine(name string, log logger.Logger) *StateMachine {
	return &StateMachine{
		name:      name,
		state:     atomic.NewUint32(uint32(radar.StateUninitialized)),
		log:       log,
		nextObsID: atomic.NewUint64(0),
	}
}

//State returns the current state.
func (sm *StateMachine) State() radar.ModuleState {
	return radar.ModuleState(sm.state.Load())
}

//Name returns the module name the machine was created with.
func (sm *StateMachine) Name() string {
	return sm.name
}

//Transition atomically swaps the state after validating legality.
//Observers run after the swap, outside any lock; their panics are
//swallowed so they cannot corrupt the module's own state.
func (sm *StateMachine) Transition(to radar.ModuleState) error {
	for {
		from := sm.State()
		if !transitionAllowed(from, to) {
			return fmt.Errorf("%s: transition %s -> %s: %w",
				sm.name, from, to, radar.ErrInvalidState)
		}
		if sm.state.CAS(uint32(from), uint32(to)) {
			sm.notifyStateChange(from, to)
			return nil
		}
		//Lost the race against a concurrent transition, re-validate
	}
}

//Force moves to Error or Shutdown from any state. Used by fault paths
//and Cleanup where legality checks do not apply.
func (sm *StateMachine) Force(to radar.ModuleState) {
	from := radar.ModuleState(sm.state.Swap(uint32(to)))
	if from != to {
		sm.notifyStateChange(from, to)
	}
}

//Require returns a state error unless the machine is in one of the
//listed states. Used by operations with documented preconditions.
func (sm *StateMachine) Require(states ...radar.ModuleState) error {
	current := sm.State()
	for _, s := range states {
		if current == s {
			return nil
		}
	}
	return fmt.Errorf("%s: operation requires state in %v, current %s: %w",
		sm.name, states, current, radar.ErrInvalidState)
}

//AddObserver registers a state-change callback and returns a handle
//for removal.
func (sm *StateMachine) AddObserver(cb radar.StateChangeCallback) uint64 {
	id := sm.nextObsID.Inc()
	sm.observersLock.Lock()
	defer sm.observersLock.Unlock()
	sm.observers = append(sm.observers, observerEntry{id: id, callback: cb})
	return id
}

//RemoveObserver unregisters a previously added callback by its handle.
func (sm *StateMachine) RemoveObserver(id uint64) bool {
	sm.observersLock.Lock()
	defer sm.observersLock.Unlock()
	for i, entry := range sm.observers {
		if entry.id == id {
			sm.observers = append(sm.observers[:i], sm.observers[i+1:]...)
			return true
		}
	}
	return false
}

func (sm *StateMachine) notifyStateChange(from, to radar.ModuleState) {
	//Copy under lock, invoke outside it
	sm.observersLock.Lock()
	callbacks := make([]radar.StateChangeCallback, 0, len(sm.observers))
	for _, entry := range sm.observers {
		callbacks = append(callbacks, entry.callback)
	}
	sm.observersLock.Unlock()

	for _, cb := range callbacks {
		sm.safeNotify(cb, from, to)
	}
}

func (sm *StateMachine) safeNotify(cb radar.StateChangeCallback, from, to radar.ModuleState) {
	defer func() {
		if rec := recover(); rec != nil && sm.log != nil {
			sm.log.Warnf("%s: state observer panicked on %s -> %s: %v", sm.name, from, to, rec)
		}
	}()
	cb(from, to)
}

func transitionAllowed(from, to radar.ModuleState) bool {
	//Error and Shutdown are terminal-ish sinks reachable from any state
	if to == radar.StateError || to == radar.StateShutdown {
		return true
	}
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
