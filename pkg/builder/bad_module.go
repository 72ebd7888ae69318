//NOTE: the file is only for unittesting purpose

package builder

import (
	"fmt"

	"github.com/wendizhou99-cell/Radar/pkg/radar"
)

type badModuleParams struct {
	initializeError bool
	startError      bool
	cleanupError    bool
}

type badModule struct {
	name            string
	initializeError bool
	startError      bool
	cleanupError    bool
	state           radar.ModuleState
}

func (bm *badModule) Initialize() error {
	if bm.initializeError {
		return fmt.Errorf("initialize error")
	}
	bm.state = radar.StateReady
	return nil
}

func (bm *badModule) Start() error {
	if bm.startError {
		return fmt.Errorf("start error")
	}
	bm.state = radar.StateRunning
	return nil
}

func (bm *badModule) Stop() error {
	bm.state = radar.StateReady
	return nil
}

func (bm *badModule) Pause() error {
	bm.state = radar.StatePaused
	return nil
}

func (bm *badModule) Resume() error {
	bm.state = radar.StateRunning
	return nil
}

func (bm *badModule) Cleanup() error {
	if bm.cleanupError {
		return fmt.Errorf("cleanup error")
	}
	bm.state = radar.StateShutdown
	return nil
}

func (bm *badModule) State() radar.ModuleState {
	return bm.state
}

func (bm *badModule) Name() string {
	return bm.name
}

func newBadModule(param *badModuleParams) *badModule {
	return &badModule{
		name:            "bad",
		initializeError: param.initializeError,
		startError:      param.startError,
		cleanupError:    param.cleanupError,
	}
}
