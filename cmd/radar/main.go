package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wendizhou99-cell/Radar/pkg/builder"
	"github.com/wendizhou99-cell/Radar/pkg/config"
	"github.com/wendizhou99-cell/Radar/pkg/display"
	"github.com/wendizhou99-cell/Radar/pkg/lifecycle"
	"github.com/wendizhou99-cell/Radar/pkg/pipeline"
	"github.com/wendizhou99-cell/Radar/pkg/radar"
	"github.com/wendizhou99-cell/Radar/pkg/radar_libraries/diagnostics"
	"github.com/wendizhou99-cell/Radar/pkg/radar_libraries/logger"
	"github.com/wendizhou99-cell/Radar/pkg/scheduler"
	"github.com/wendizhou99-cell/Radar/pkg/version"
)

const receivePollInterval = 100 * time.Millisecond

var (
	configPath    = flag.String("config", "", "path to the YAML configuration file")
	blueprintPath = flag.String("blueprint", "", "optional pipeline blueprint; overrides the built-in wiring")
	showVersion   = flag.Bool("version", false, "print version information and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Summary())
		return
	}

	conf, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "radar: %s\n", err)
		os.Exit(1)
	}

	logManager, err := logger.NewManager(conf.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "radar: logger: %s\n", err)
		os.Exit(1)
	}
	defer logManager.Close()

	diag := diagnostics.NewRuntimeDiagnostics(conf.Diagnostics, logManager.GetOrCreateLogger("diagnostics"))
	defer diag.Close()

	if *blueprintPath != "" {
		err = runBlueprint(*blueprintPath, conf, logManager)
	} else {
		err = runPipeline(conf, logManager)
	}
	if err != nil {
		logManager.Default().Errorf("radar exited with error: %s", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.AppConfig, error) {
	if *configPath == "" {
		return config.NewDefaultAppConfig()
	}
	return config.Load(*configPath)
}

//runPipeline wires receiver -> processor -> display with the task
//scheduler carrying the processing work, then blocks until a signal.
func runPipeline(conf *config.AppConfig, logManager logger.Manager) error {
	log := logManager.Default()

	var source pipeline.PacketSource
	if conf.Receiver.SimulationEnabled {
		source = pipeline.NewSimulatedSource(conf.Receiver)
	}
	receiver := pipeline.NewReceiver(conf.Receiver, source, logManager.GetOrCreateLogger("receiver"))
	sched := scheduler.NewTaskScheduler(conf.Scheduler, logManager.GetOrCreateLogger("scheduler"))
	processor := pipeline.NewProcessor(conf.Processor, logManager.GetOrCreateLogger("processor"))
	processor.AttachScheduler(sched)
	screen := display.NewController(conf.Display, logManager.GetOrCreateLogger("display"))

	processor.SetResultCallback(func(result *radar.ProcessingResult) {
		if err := screen.SubmitResult(result); err != nil && !errors.Is(err, radar.ErrNotReady) {
			log.Warnf("display rejected result %d: %s", result.SourcePacketID, err)
		}
	})

	//Startup order: the scheduler first so the processor can lean on it,
	//the receiver last so packets only flow once everything is up.
	modules := []lifecycle.Module{sched, screen, processor, receiver}
	started := make([]lifecycle.Module, 0, len(modules))
	defer func() {
		//Teardown in reverse startup order
		for i := len(started) - 1; i >= 0; i-- {
			if err := started[i].Cleanup(); err != nil {
				log.Errorf("cleanup of %s failed: %s", started[i].Name(), err)
			}
		}
	}()

	for _, module := range modules {
		if err := module.Initialize(); err != nil {
			return fmt.Errorf("initialize %s: %w", module.Name(), err)
		}
		if err := module.Start(); err != nil {
			return fmt.Errorf("start %s: %w", module.Name(), err)
		}
		started = append(started, module)
	}
	log.Infof("radar pipeline up: strategy %s, %d workers, %s scheduling",
		conf.Processor.Strategy, conf.Scheduler.WorkerThreads, conf.Scheduler.SchedulingPolicy)

	stopCh := make(chan struct{})
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		pumpPackets(receiver, processor, log, stopCh)
	}()

	waitForSignal(log)
	close(stopCh)
	<-pumpDone

	reportStatistics(log, receiver, processor, sched, screen)
	return nil
}

//pumpPackets moves buffered packets from the receiver into the
//processor until told to stop.
func pumpPackets(receiver *pipeline.Receiver, processor *pipeline.Processor, log logger.Logger, stopCh <-chan struct{}) {
	for {
		select {
		case <-stopCh:
			return
		default:
		}

		packet, err := receiver.ReceivePacket(receivePollInterval)
		if err != nil {
			if errors.Is(err, radar.ErrTimeout) {
				continue
			}
			if errors.Is(err, radar.ErrShutdown) {
				return
			}
			log.Warnf("receive failed: %s", err)
			continue
		}
		if _, err := processor.ProcessPacketAsync(packet); err != nil {
			log.Warnf("processing of packet %d not scheduled: %s", packet.SequenceID, err)
		}
	}
}

//runBlueprint assembles the pipeline from a YAML blueprint instead of
//the built-in wiring. Module types available to blueprints: receiver,
//processor, display.
func runBlueprint(path string, conf *config.AppConfig, logManager logger.Manager) error {
	log := logManager.Default()

	b, err := builder.NewBuilder(path, log)
	if err != nil {
		return fmt.Errorf("blueprint: %w", err)
	}

	newReceiver := func() *pipeline.Receiver {
		var source pipeline.PacketSource
		if conf.Receiver.SimulationEnabled {
			source = pipeline.NewSimulatedSource(conf.Receiver)
		}
		return pipeline.NewReceiver(conf.Receiver, source, logManager.GetOrCreateLogger("receiver"))
	}
	newProcessor := func() *pipeline.Processor {
		return pipeline.NewProcessor(conf.Processor, logManager.GetOrCreateLogger("processor"))
	}
	newDisplay := func() *display.Controller {
		return display.NewController(conf.Display, logManager.GetOrCreateLogger("display"))
	}
	for typeName, creator := range map[string]builder.Creator{
		"receiver":  newReceiver,
		"processor": newProcessor,
		"display":   newDisplay,
	} {
		if err := b.AddConstructor(typeName, creator); err != nil {
			return fmt.Errorf("blueprint: %w", err)
		}
	}

	if errs := b.Run(); len(errs) > 0 {
		for _, err := range errs {
			log.Errorf("blueprint run: %s", err)
		}
		b.Shutdown()
		return fmt.Errorf("blueprint pipeline failed to start")
	}
	log.Infof("blueprint pipeline up from %s", path)

	waitForSignal(log)

	for _, err := range b.Shutdown() {
		log.Errorf("blueprint shutdown: %s", err)
	}
	return nil
}

func waitForSignal(log logger.Logger) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	sig := <-signals
	log.Infof("received %s, shutting down", sig)
}

func reportStatistics(log logger.Logger, receiver *pipeline.Receiver, processor *pipeline.Processor,
	sched *scheduler.TaskScheduler, screen *display.Controller) {
	buffer := receiver.BufferStatus()
	tasks := sched.Statistics().Snapshot()
	frames := screen.DisplayMetrics()
	log.Infof("packets: received %d, dropped %d, invalid %d",
		buffer.TotalReceived, buffer.TotalDropped, receiver.InvalidPackets())
	log.Infof("processing: %d ok, %d failed, mean %s",
		processor.Processed(), processor.Failed(), processor.MeanProcessingTime())
	log.Infof("tasks: %d submitted, %d completed, %d retried, %d timed out",
		tasks.Submitted, tasks.Completed, tasks.Retried, tasks.TimedOut)
	log.Infof("display: %d frames rendered, %d results dropped",
		frames.FramesRendered, frames.ResultsDropped)
}
