package diagnostics

import (
	"io"
	"net/http"
	"net/http/pprof"
	"os"
	"strings"
	"sync"

	gops "github.com/google/gops/agent"
	opentracing "github.com/opentracing/opentracing-go"
	jaeger "github.com/uber/jaeger-client-go"
	jaegerConfig "github.com/uber/jaeger-client-go/config"

	"github.com/wendizhou99-cell/Radar/pkg/radar_libraries/logger"
)

const (
	globalEnableEnvVarName = "RADAR_RUNTIME_DIAGNOSTICS_ENABLED"
	enableEnvVarPrefix     = "RADAR_RUNTIME_ENABLE_"
)

type Diagnostics interface {
	//UpdateConfig applies a new runtime diagnostics configuration
	UpdateConfig(RuntimeDiagnosticsConfig)
	//Close is a closer function that should be deferred in the main function for grace shutdown
	Close()
}

type RuntimeDiagnosticsConfig struct {
	//the name to distinguish between the different components
	ComponentName string `yaml:"componentName"`
	EnablePprof   bool   `yaml:"enablePprof"`
	EnableGops    bool   `yaml:"enableGops"`
	EnableJaeger  bool   `yaml:"enableJaeger"`
	//string port, usually 6060
	PprofPort string `yaml:"pprofPort"`
}

type diagnostics struct {
	configLock sync.Mutex
	log        logger.Logger

	jaegerCloser  io.Closer
	pprofServer   *http.Server
	isGopsEnabled bool
}

func (d *diagnostics) Close() {
	d.configLock.Lock()
	defer d.configLock.Unlock()
	d.safeCloseJaeger() //nolint - fix it
	d.safeCloseGops()
	d.safeClosePprof() //nolint - fix it
}

func (d *diagnostics) UpdateConfig(conf RuntimeDiagnosticsConfig) {
	d.configLock.Lock()
	defer d.configLock.Unlock()

	//Update PProf
	switch isChangeInConfig(d.pprofServer != nil, conf.EnablePprof) {
	case enable:
		d.safeClosePprof() //nolint - fix it
		d.initCPUProfiler(conf)
	case disable:
		d.safeClosePprof() //nolint - fix it
	}

	//Update GOPS
	switch isChangeInConfig(d.isGopsEnabled, conf.EnableGops) {
	case enable:
		d.safeCloseGops()
		d.initRuntimeGopsDiagnostics() //nolint - fix it
	case disable:
		d.safeCloseGops()
	}

	//Update Jaeger
	switch isChangeInConfig(d.jaegerCloser != nil, conf.EnableJaeger) {
	case enable:
		d.safeCloseJaeger() //nolint - fix it
		d.initJaegerCollector(conf)
	case disable:
		d.safeCloseJaeger() //nolint - fix it
	}
}

//initJaegerCollector installs a Jaeger tracer that samples 100% of traces and logs all spans.
func (d *diagnostics) initJaegerCollector(conf RuntimeDiagnosticsConfig) {
	if !envEnabled("JAEGER") && !conf.EnableJaeger {
		return
	}

	cfg := &jaegerConfig.Configuration{
		ServiceName: conf.ComponentName,
		Sampler: &jaegerConfig.SamplerConfig{
			Type:  "const",
			Param: 1,
		},
		Reporter: &jaegerConfig.ReporterConfig{
			LogSpans: true,
		},
	}

	tracer, closer, err := cfg.NewTracer(jaegerConfig.Logger(jaeger.StdLogger))
	if err != nil {
		d.log.Errorf("cannot init Jaeger: %v", err)
		return
	}
	d.jaegerCloser = closer
	d.log.Info("successfully initialized Jaeger")
	opentracing.SetGlobalTracer(tracer)
}

func (d *diagnostics) safeCloseJaeger() error {
	if d.jaegerCloser == nil {
		return nil
	}
	opentracing.SetGlobalTracer(nil)
	err := d.jaegerCloser.Close()
	d.jaegerCloser = nil
	return err
}

func (d *diagnostics) initRuntimeGopsDiagnosticsFromConf(conf RuntimeDiagnosticsConfig) {
	if !envEnabled("GOPS") && !conf.EnableGops {
		return
	}
	d.log.Infof("running GOPS diagnostics")
	if err := d.initRuntimeGopsDiagnostics(); err != nil {
		d.log.Warnf("could not enable gops runtime diagnostics: %v", err)
	}
}

func (d *diagnostics) initRuntimeGopsDiagnostics(configDir ...string) error {
	configs := gops.Options{
		ShutdownCleanup: true, // automatically closes on os.Interrupt
	}
	if len(configDir) > 0 {
		configs.ConfigDir = configDir[0]
	}
	if err := gops.Listen(configs); err != nil {
		return err
	}
	d.isGopsEnabled = true
	d.log.Info("running with gops runtime diagnostics endpoint")
	return nil
}

func (d *diagnostics) safeCloseGops() {
	//GOPS close is safe no need to check
	gops.Close()
	d.isGopsEnabled = false
}

func (d *diagnostics) initCPUProfiler(conf RuntimeDiagnosticsConfig) {
	if !envEnabled("PPROF") && !conf.EnablePprof {
		return
	}

	profsrv := http.NewServeMux()

	profsrv.Handle("/debug/pprof/", http.HandlerFunc(pprof.Index))
	profsrv.Handle("/debug/pprof/cmdline", http.HandlerFunc(pprof.Cmdline))
	profsrv.Handle("/debug/pprof/profile", http.HandlerFunc(pprof.Profile))
	profsrv.Handle("/debug/pprof/symbol", http.HandlerFunc(pprof.Symbol))
	profsrv.Handle("/debug/pprof/trace", http.HandlerFunc(pprof.Trace))

	server := &http.Server{Addr: "localhost:" + conf.PprofPort, Handler: profsrv}
	go func() {
		d.log.Infof("%v", server.ListenAndServe())
	}()
	d.pprofServer = server
	d.log.Infof("Running with pprof enabled http://localhost:%s/debug/pprof/", conf.PprofPort)
}

func (d *diagnostics) safeClosePprof() error {
	if d.pprofServer == nil {
		return nil
	}
	err := d.pprofServer.Close()
	d.pprofServer = nil
	return err
}

const (
	enable     = "ENABLE"
	disable    = "DISABLE"
	unchanging = "UNCHANGING"
)

func isChangeInConfig(existing bool, toEnable bool) string {
	switch {
	case !existing && toEnable:
		return enable
	case existing && !toEnable:
		return disable
	}
	return unchanging
}

func envEnabled(tool string) bool {
	return strings.ToLower(os.Getenv(globalEnableEnvVarName)) == "true" ||
		strings.ToLower(os.Getenv(enableEnvVarPrefix+tool)) == "true"
}

//NewRuntimeDiagnostics is the common runtime diagnostics for the radar binaries.
//The global enable is using the env variable RADAR_RUNTIME_DIAGNOSTICS_ENABLED if set to "true";
//each tool can also be activated individually through RADAR_RUNTIME_ENABLE_<TOOL> or the config.
func NewRuntimeDiagnostics(params RuntimeDiagnosticsConfig, l logger.Logger) Diagnostics {
	d := &diagnostics{
		log: l,
	}
	d.initRuntimeGopsDiagnosticsFromConf(params)
	d.initCPUProfiler(params)
	d.initJaegerCollector(params)

	return d
}
