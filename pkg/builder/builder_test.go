package builder

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/wendizhou99-cell/Radar/pkg/display"
	"github.com/wendizhou99-cell/Radar/pkg/lifecycle"
	"github.com/wendizhou99-cell/Radar/pkg/pipeline"
	"github.com/wendizhou99-cell/Radar/pkg/radar"
	"github.com/wendizhou99-cell/Radar/pkg/radar_libraries/logger"
)

type BuilderTestSuite struct {
	suite.Suite
	log logger.Logger
}

func (suite *BuilderTestSuite) SetupSuite() {
	m, err := logger.NewManager(logger.ManagerConfig{
		Name:               "test",
		DefaultTraceLevel:  logger.ErrorLevel,
		EnableStdoutLogger: true,
	})
	require.NoError(suite.T(), err, "Failed to create logger")
	suite.log = m.Default()
}

func (suite *BuilderTestSuite) countModules(builder *Builder) int {
	modules := 0
	for iter := builder.GetModulesIterator(); iter != nil; iter = iter.Next() {
		modules++
	}
	return modules
}

//Zero-param creators for the real pipeline stages
func (suite *BuilderTestSuite) newTestReceiver() *pipeline.Receiver {
	return pipeline.NewReceiver(radar.NewDefaultReceiverConfig(), nil, suite.log)
}

func (suite *BuilderTestSuite) newTestProcessor() *pipeline.Processor {
	return pipeline.NewProcessor(radar.NewDefaultProcessorConfig(), suite.log)
}

func (suite *BuilderTestSuite) newTestDisplay() *display.Controller {
	conf := radar.NewDefaultDisplayConfig()
	conf.UpdateInterval = 5 * time.Millisecond
	c := display.NewController(conf, suite.log)
	c.SetOutput(nullWriter{})
	return c
}

type nullWriter struct{}

func (nullWriter) Write(p []byte) (int, error) { return len(p), nil }

func (suite *BuilderTestSuite) TestBuilder__MissingConstructor() {
	layout := `
modules:
- name: Module1
  type: Type1
`
	file, err := createTemporaryFile([]byte(layout))
	require.NoError(suite.T(), err, "failed to create layout file: %s", err)
	defer os.Remove(file.Name())

	builder, err := NewBuilder(file.Name(), suite.log)
	require.NoError(suite.T(), err, "failed to create builder: %s", err)

	errors := builder.Run()
	require.NotZero(suite.T(), len(errors), "builder was able run with module missing a constructor")

	//Check that no module reference was added to modules map
	require.Equal(suite.T(), 0, suite.countModules(builder))
}

func (suite *BuilderTestSuite) TestBuilder__DuplicateTypeConstructor() {
	layout := `
modules:
- name: Module1
  type: Type1
`
	file, err := createTemporaryFile([]byte(layout))
	require.NoError(suite.T(), err, "failed to create layout file: %s", err)
	defer os.Remove(file.Name())

	builder, err := NewBuilder(file.Name(), suite.log)
	require.NoError(suite.T(), err, "failed to create builder: %s", err)

	//First addition of Type1 constructor should pass
	err = builder.AddConstructor("Type1", func() {})
	require.NoError(suite.T(), err, "failed to add constructor: %s", err)

	//Second addition of Type1 constructor should fail
	err = builder.AddConstructor("Type1", func() {})
	require.Error(suite.T(), err, "added constructor twice for same module type")
}

func (suite *BuilderTestSuite) TestBuilder__ErrorConstructor() {
	layout := `
modules:
- name: Module1
  type: Type1
`
	file, err := createTemporaryFile([]byte(layout))
	require.NoError(suite.T(), err, "failed to create layout file: %s", err)
	defer os.Remove(file.Name())

	builder, err := NewBuilder(file.Name(), suite.log)
	require.NoError(suite.T(), err, "failed to create builder: %s", err)

	//Add constructor which returns an error.
	errorConstructor := func() (lifecycle.Module, error) {
		return nil, fmt.Errorf("test error")
	}
	err = builder.AddConstructor("Type1", errorConstructor)
	require.NoError(suite.T(), err, "failed to add constructor: %s", err)

	//Try to build and run the pipeline.
	errors := builder.Run()
	require.NotZero(suite.T(), len(errors), "builder was able to run with error on constructor")

	//Check that the module reference was not added to modules map.
	require.Equal(suite.T(), 0, suite.countModules(builder))
}

func (suite *BuilderTestSuite) TestBuilder__NonHandlerInPacketDestination() {
	layout := `
modules:
- name: Module1
  type: receiver
- name: Module2
  type: bad
packetRoutes:
- source: Module1
  destination: Module2
`
	file, err := createTemporaryFile([]byte(layout))
	require.NoError(suite.T(), err, "failed to create layout file: %s", err)
	defer os.Remove(file.Name())

	builder, err := NewBuilder(file.Name(), suite.log)
	require.NoError(suite.T(), err, "failed to create builder: %s", err)

	err = builder.AddConstructor("receiver", suite.newTestReceiver)
	require.NoError(suite.T(), err, "failed to add constructor: %s", err)

	//badModule implements none of the route interfaces
	err = builder.AddConstructor("bad", newBadModule, &badModuleParams{})
	require.NoError(suite.T(), err, "failed to add constructor: %s", err)

	//Try to build and run the pipeline. Should fail on route wiring.
	errors := builder.Run()
	require.NotZero(suite.T(), len(errors), "builder was able run with a packet route into a non handler")

	//Check that no module was added to the failed to build pipeline.
	require.Equal(suite.T(), 0, suite.countModules(builder))
}

func (suite *BuilderTestSuite) TestBuilder__RunWithShutdown() {
	layout := `
modules:
- name: Receiver1
  type: receiver
- name: Processor1
  type: processor
- name: Display1
  type: display
packetRoutes:
- source: Receiver1
  destination: Processor1
resultRoutes:
- source: Processor1
  destination: Display1
`
	file, err := createTemporaryFile([]byte(layout))
	require.NoError(suite.T(), err, "failed to create layout file: %s", err)
	defer os.Remove(file.Name())

	builder, err := NewBuilder(file.Name(), suite.log)
	require.NoError(suite.T(), err, "failed to create builder: %s", err)

	err = builder.AddConstructor("receiver", suite.newTestReceiver)
	require.NoError(suite.T(), err, "failed to add constructor: %s", err)
	err = builder.AddConstructor("processor", suite.newTestProcessor)
	require.NoError(suite.T(), err, "failed to add constructor: %s", err)
	err = builder.AddConstructor("display", suite.newTestDisplay)
	require.NoError(suite.T(), err, "failed to add constructor: %s", err)

	//Build and run the pipeline.
	errors := builder.Run()
	require.Zero(suite.T(), len(errors), "builder run failed: %v", errors)

	//Check that all modules are running.
	modules := 0
	for iter := builder.GetModulesIterator(); iter != nil; iter = iter.Next() {
		current, err := iter.Current()
		require.NoError(suite.T(), err)
		require.Equal(suite.T(), radar.StateRunning, current.Instance().State(), "module %d is not running", modules)
		modules++
	}
	require.Equal(suite.T(), 3, modules)

	//Push one packet through the routed pipeline and wait for the frame.
	receiverInfo, err := builder.getModuleInfo("Receiver1")
	require.NoError(suite.T(), err)
	receiver := receiverInfo.Instance().(*pipeline.Receiver)
	displayInfo, err := builder.getModuleInfo("Display1")
	require.NoError(suite.T(), err)
	screen := displayInfo.Instance().(*display.Controller)

	packet := &radar.RawDataPacket{
		Timestamp:         time.Now(),
		SequenceID:        1,
		Priority:          radar.PriorityNormal,
		ChannelCount:      2,
		SamplesPerChannel: 8,
		IQData:            make([]complex64, 16),
	}
	require.NoError(suite.T(), receiver.EnqueuePacket(packet))

	err = wait.Poll(2*time.Millisecond, 2*time.Second, func() (bool, error) {
		return screen.DisplayMetrics().FramesRendered >= 1, nil
	})
	require.NoError(suite.T(), err, "packet did not reach the display through the routes")

	//Shutdown the pipeline.
	errors = builder.Shutdown()
	require.Zero(suite.T(), len(errors), "builder shutdown failed: %v", errors)

	//Check that all modules reached shutdown.
	modules = 0
	for iter := builder.GetModulesIterator(); iter != nil; iter = iter.Next() {
		current, err := iter.Current()
		require.NoError(suite.T(), err)
		require.Equal(suite.T(), radar.StateShutdown, current.Instance().State(), "module %d is still up", modules)
		modules++
	}
	require.Equal(suite.T(), 3, modules)

	//Test builder maps cleanup
	builder.Clear()
	require.Equal(suite.T(), 0, suite.countModules(builder))
	require.Equal(suite.T(), 0, len(builder.constructors))
}

func (suite *BuilderTestSuite) TestBuilder__BadRun() {
	layout := `
modules:
- name: Module1
  type: Type1
`
	file, err := createTemporaryFile([]byte(layout))
	require.NoError(suite.T(), err, "failed to create layout file: %s", err)
	defer os.Remove(file.Name())

	builder, err := NewBuilder(file.Name(), suite.log)
	require.NoError(suite.T(), err, "failed to create builder: %s", err)

	//Add constructor which returns a module with error on Start.
	err = builder.AddConstructor("Type1", newBadModule, &badModuleParams{
		startError: true,
	})
	require.NoError(suite.T(), err, "failed to add constructor: %s", err)

	//Try to build and run the pipeline.
	errors := builder.Run()
	require.NotZero(suite.T(), len(errors), "builder was able to run with no errors")

	//Check that the module reference was added to modules map as constructor worked.
	require.Equal(suite.T(), 1, suite.countModules(builder))
}

func (suite *BuilderTestSuite) TestBuilder__BadInitialize() {
	layout := `
modules:
- name: Module1
  type: Type1
`
	file, err := createTemporaryFile([]byte(layout))
	require.NoError(suite.T(), err, "failed to create layout file: %s", err)
	defer os.Remove(file.Name())

	builder, err := NewBuilder(file.Name(), suite.log)
	require.NoError(suite.T(), err, "failed to create builder: %s", err)

	//Add constructor which returns a module with error on Initialize.
	err = builder.AddConstructor("Type1", newBadModule, &badModuleParams{
		initializeError: true,
	})
	require.NoError(suite.T(), err, "failed to add constructor: %s", err)

	errors := builder.Run()
	require.NotZero(suite.T(), len(errors), "builder was able to run with initialize error")
}

func (suite *BuilderTestSuite) TestBuilder__BadShutdown() {
	layout := `
modules:
- name: Module1
  type: Type1
`
	file, err := createTemporaryFile([]byte(layout))
	require.NoError(suite.T(), err, "failed to create layout file: %s", err)
	defer os.Remove(file.Name())

	builder, err := NewBuilder(file.Name(), suite.log)
	require.NoError(suite.T(), err, "failed to create builder: %s", err)

	//Add constructor which returns a module with error on Cleanup.
	err = builder.AddConstructor("Type1", newBadModule, &badModuleParams{
		cleanupError: true,
	})
	require.NoError(suite.T(), err, "failed to add constructor: %s", err)

	//Try to build and run the pipeline.
	errors := builder.Run()
	require.Zero(suite.T(), len(errors), "builder run failed: %v", errors)

	//Check that the module reference was added to modules map.
	require.Equal(suite.T(), 1, suite.countModules(builder))

	//Try a bad shutdown.
	errors = builder.Shutdown()
	require.NotZero(suite.T(), len(errors), "builder shutdown did not fail")
}

func (suite *BuilderTestSuite) TestBuilder__DoubleRunCall() {
	layout := `
modules:
- name: Module1
  type: Type1
`
	file, err := createTemporaryFile([]byte(layout))
	require.NoError(suite.T(), err, "failed to create layout file: %s", err)
	defer os.Remove(file.Name())

	builder, err := NewBuilder(file.Name(), suite.log)
	require.NoError(suite.T(), err, "failed to create builder: %s", err)

	err = builder.AddConstructor("Type1", newBadModule, &badModuleParams{})
	require.NoError(suite.T(), err, "failed to add constructor: %s", err)

	//Build and run the pipeline.
	errors := builder.Run()
	require.Zero(suite.T(), len(errors), "builder run failed: %v", errors)

	//Duplicate Run call should fail.
	errors = builder.Run()
	require.NotZero(suite.T(), len(errors), "builder duplicate run call did not fail")
}

func TestBuilder__RUN(t *testing.T) {
	crt := new(BuilderTestSuite)
	suite.Run(t, crt)
}
