package display

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	metrics "github.com/rcrowley/go-metrics"
	"go.uber.org/atomic"

	"github.com/wendizhou99-cell/Radar/pkg/lifecycle"
	"github.com/wendizhou99-cell/Radar/pkg/queue"
	"github.com/wendizhou99-cell/Radar/pkg/radar"
	"github.com/wendizhou99-cell/Radar/pkg/radar_libraries/logger"
)

//Metrics summarizes the display stage activity.
type Metrics struct {
	FramesRendered uint64
	ResultsDropped uint64
	RefreshPerSec  float64
	Buffer         radar.BufferStatus
}

//Controller is the presentation stage.
//Results arrive through a bounded buffer and a render loop flushes them
//to the configured renderer at the refresh interval. Rendering is
//deliberately plain; this stage exists to terminate the pipeline, not
//to be a UI.
type Controller struct {
	*lifecycle.StateMachine
	log logger.Logger

	conf     radar.DisplayConfig
	results  *queue.Bounded[*radar.ProcessingResult]
	renderer Renderer
	out      io.Writer

	framesRendered *atomic.Uint64
	refreshMeter   metrics.Meter

	lastLock   sync.Mutex
	lastResult *radar.ProcessingResult

	stopCh chan struct{}
	wg     sync.WaitGroup
}

//NewController creates a display controller writing to stdout.
func NewController(conf radar.DisplayConfig, log logger.Logger) *Controller {
	return &Controller{
		StateMachine:   lifecycle.NewStateMachine("display", log),
		log:            log,
		conf:           conf,
		out:            os.Stdout,
		framesRendered: atomic.NewUint64(0),
		refreshMeter:   metrics.NewMeter(),
	}
}

//SetOutput redirects rendering, mainly for tests.
func (c *Controller) SetOutput(w io.Writer) {
	c.out = w
}

//Initialize validates the configuration and allocates the result buffer.
func (c *Controller) Initialize() error {
	if err := c.Transition(radar.StateInitializing); err != nil {
		return err
	}

	renderer, err := NewRenderer(c.conf.OutputFormat)
	if err != nil {
		c.Force(radar.StateError)
		return err
	}
	if c.conf.BufferSize <= 0 {
		c.Force(radar.StateError)
		return fmt.Errorf("display: buffer size %d: %w", c.conf.BufferSize, radar.ErrInvalidParameter)
	}

	c.renderer = renderer
	//stale frames are worthless, newest results win
	c.results = queue.NewFIFO[*radar.ProcessingResult](c.conf.BufferSize, radar.DropOldest)
	c.log.Infof("display initialized: format %s, buffer %d", c.conf.OutputFormat, c.conf.BufferSize)
	return c.Transition(radar.StateReady)
}

//Start launches the render loop when auto refresh is enabled.
func (c *Controller) Start() error {
	if err := c.Transition(radar.StateRunning); err != nil {
		return err
	}

	c.stopCh = make(chan struct{})
	if c.conf.AutoRefresh {
		c.wg.Add(1)
		go c.renderLoop()
	}
	return nil
}

//Stop halts the render loop. Buffered results survive for a restart.
func (c *Controller) Stop() error {
	if err := c.Transition(radar.StateReady); err != nil {
		return err
	}
	close(c.stopCh)
	c.wg.Wait()
	return nil
}

//Pause freezes rendering without dropping buffered results.
func (c *Controller) Pause() error {
	return c.Transition(radar.StatePaused)
}

//Resume continues rendering after a Pause.
func (c *Controller) Resume() error {
	return c.Transition(radar.StateRunning)
}

//Cleanup closes the result buffer. Idempotent.
func (c *Controller) Cleanup() error {
	if c.State() == radar.StateShutdown {
		return nil
	}
	if c.State() == radar.StatePaused {
		if err := c.Resume(); err != nil {
			c.log.Errorf("display cleanup: resume failed: %s", err)
		}
	}
	if c.State() == radar.StateRunning {
		if err := c.Stop(); err != nil {
			c.log.Errorf("display cleanup: stop failed: %s", err)
		}
	}
	if c.results != nil {
		c.results.Close()
	}
	c.Force(radar.StateShutdown)
	return nil
}

func (c *Controller) renderLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.conf.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
		}
		if c.State() == radar.StatePaused {
			continue
		}
		if err := c.RenderOnce(); err != nil && !errors.Is(err, radar.ErrTimeout) {
			c.log.Warnf("render failed: %s", err)
		}
	}
}

//SubmitResult admits one result into the display buffer.
func (c *Controller) SubmitResult(result *radar.ProcessingResult) error {
	if state := c.State(); state != radar.StateRunning && state != radar.StatePaused {
		return fmt.Errorf("display: submit in state %s: %w", state, radar.ErrNotReady)
	}
	if result == nil {
		return fmt.Errorf("display: nil result: %w", radar.ErrInvalidParameter)
	}
	return c.results.Enqueue(result)
}

//RenderOnce renders the next buffered result, if any.
func (c *Controller) RenderOnce() error {
	result, ok := c.results.TryDequeue()
	if !ok {
		return nil
	}

	c.lastLock.Lock()
	c.lastResult = result
	c.lastLock.Unlock()

	if err := c.renderer.Render(c.out, result); err != nil {
		return fmt.Errorf("display: %v: %w", err, radar.ErrTaskFailed)
	}
	c.framesRendered.Inc()
	c.refreshMeter.Mark(1)
	return nil
}

//SaveToFile renders the most recent result into the output directory.
func (c *Controller) SaveToFile(name string) (string, error) {
	c.lastLock.Lock()
	result := c.lastResult
	c.lastLock.Unlock()
	if result == nil {
		return "", fmt.Errorf("display: nothing rendered yet: %w", radar.ErrNotReady)
	}

	if err := os.MkdirAll(c.conf.OutputPath, 0o755); err != nil {
		return "", fmt.Errorf("display: %v: %w", err, radar.ErrTaskFailed)
	}
	path := filepath.Join(c.conf.OutputPath, name+c.renderer.Extension())
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("display: %v: %w", err, radar.ErrTaskFailed)
	}
	defer file.Close()

	if err := c.renderer.Render(file, result); err != nil {
		return "", fmt.Errorf("display: %v: %w", err, radar.ErrTaskFailed)
	}
	return path, nil
}

//ClearDisplay drops buffered results and the retained last frame.
func (c *Controller) ClearDisplay() int {
	cleared := 0
	if c.results != nil {
		cleared = len(c.results.Clear())
	}
	c.lastLock.Lock()
	c.lastResult = nil
	c.lastLock.Unlock()
	return cleared
}

//DisplayMetrics snapshots the stage counters.
func (c *Controller) DisplayMetrics() Metrics {
	m := Metrics{
		FramesRendered: c.framesRendered.Load(),
		RefreshPerSec:  c.refreshMeter.Rate1(),
	}
	if c.results != nil {
		m.Buffer = c.results.Status()
		m.ResultsDropped = m.Buffer.TotalDropped
	}
	return m
}
