package display

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/wendizhou99-cell/Radar/pkg/radar"
	"github.com/wendizhou99-cell/Radar/pkg/radar_libraries/logger"
)

type DisplayTestSuite struct {
	suite.Suite
	log logger.Logger
}

func (suite *DisplayTestSuite) SetupSuite() {
	m, err := logger.NewManager(logger.ManagerConfig{
		Name:               "test",
		DefaultTraceLevel:  logger.ErrorLevel,
		EnableStdoutLogger: true,
	})
	require.NoError(suite.T(), err, "Failed to create logger")
	suite.log = m.Default()
}

func testResult(id uint64) *radar.ProcessingResult {
	return &radar.ProcessingResult{
		ProcessingTime:    time.Now(),
		SourcePacketID:    id,
		ProcessingSuccess: true,
		RangeProfile:      []float32{1.5, 2.5},
		DopplerSpectrum:   []float32{0.5, 0.25},
		BeamformedData:    []float32{3, 4},
		Statistics: radar.ResultStatistics{
			ProcessingDuration: 2 * time.Millisecond,
		},
	}
}

func (suite *DisplayTestSuite) newRunningController(conf radar.DisplayConfig, out *bytes.Buffer) *Controller {
	c := NewController(conf, suite.log)
	if out != nil {
		c.SetOutput(out)
	}
	require.NoError(suite.T(), c.Initialize())
	require.NoError(suite.T(), c.Start())
	return c
}

func (suite *DisplayTestSuite) TestDisplay__SupportedFormats() {
	suite.Equal([]string{"csv", "json", "text"}, SupportedFormats())

	_, err := NewRenderer("hologram")
	suite.True(errors.Is(err, radar.ErrInvalidParameter))
}

func (suite *DisplayTestSuite) TestDisplay__UnknownFormatFailsInit() {
	conf := radar.NewDefaultDisplayConfig()
	conf.OutputFormat = "hologram"
	c := NewController(conf, suite.log)

	suite.Error(c.Initialize())
	suite.Equal(radar.StateError, c.State())
}

func (suite *DisplayTestSuite) TestDisplay__TextFrame() {
	conf := radar.NewDefaultDisplayConfig()
	conf.AutoRefresh = false
	var out bytes.Buffer
	c := suite.newRunningController(conf, &out)
	defer c.Cleanup()

	require.NoError(suite.T(), c.SubmitResult(testResult(7)))
	require.NoError(suite.T(), c.RenderOnce())

	frame := out.String()
	suite.Contains(frame, "packet")
	suite.Contains(frame, "7")
	suite.Contains(frame, "range bins")
	suite.Equal(uint64(1), c.DisplayMetrics().FramesRendered)
}

func (suite *DisplayTestSuite) TestDisplay__CSVFrame() {
	conf := radar.NewDefaultDisplayConfig()
	conf.OutputFormat = "csv"
	conf.AutoRefresh = false
	var out bytes.Buffer
	c := suite.newRunningController(conf, &out)
	defer c.Cleanup()

	require.NoError(suite.T(), c.SubmitResult(testResult(1)))
	require.NoError(suite.T(), c.RenderOnce())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(suite.T(), lines, 3, "header plus one row per bin")
	suite.Equal("bin,range,doppler,beamformed", lines[0])
	suite.True(strings.HasPrefix(lines[1], "0,1.5,0.5,3"))
}

func (suite *DisplayTestSuite) TestDisplay__JSONFrame() {
	conf := radar.NewDefaultDisplayConfig()
	conf.OutputFormat = "json"
	conf.AutoRefresh = false
	var out bytes.Buffer
	c := suite.newRunningController(conf, &out)
	defer c.Cleanup()

	require.NoError(suite.T(), c.SubmitResult(testResult(12)))
	require.NoError(suite.T(), c.RenderOnce())
	suite.Contains(out.String(), "\"SourcePacketID\": 12")
}

func (suite *DisplayTestSuite) TestDisplay__AutoRefreshLoop() {
	conf := radar.NewDefaultDisplayConfig()
	conf.UpdateInterval = 5 * time.Millisecond
	var out bytes.Buffer
	c := suite.newRunningController(conf, &out)
	defer c.Cleanup()

	for id := uint64(1); id <= 3; id++ {
		require.NoError(suite.T(), c.SubmitResult(testResult(id)))
	}

	err := wait.PollImmediate(10*time.Millisecond, 5*time.Second, func() (bool, error) {
		return c.DisplayMetrics().FramesRendered == 3, nil
	})
	suite.NoError(err, "render loop must drain the buffer")
}

func (suite *DisplayTestSuite) TestDisplay__PauseFreezesRendering() {
	conf := radar.NewDefaultDisplayConfig()
	conf.UpdateInterval = 5 * time.Millisecond
	var out bytes.Buffer
	c := suite.newRunningController(conf, &out)
	defer c.Cleanup()

	require.NoError(suite.T(), c.Pause())
	require.NoError(suite.T(), c.SubmitResult(testResult(1)))
	time.Sleep(50 * time.Millisecond)
	suite.Equal(uint64(0), c.DisplayMetrics().FramesRendered, "paused display must not render")

	require.NoError(suite.T(), c.Resume())
	err := wait.PollImmediate(10*time.Millisecond, 5*time.Second, func() (bool, error) {
		return c.DisplayMetrics().FramesRendered == 1, nil
	})
	suite.NoError(err, "resume must render the buffered result")
}

func (suite *DisplayTestSuite) TestDisplay__OverflowDropsOldest() {
	conf := radar.NewDefaultDisplayConfig()
	conf.AutoRefresh = false
	conf.BufferSize = 2
	var out bytes.Buffer
	c := suite.newRunningController(conf, &out)
	defer c.Cleanup()

	for id := uint64(1); id <= 4; id++ {
		require.NoError(suite.T(), c.SubmitResult(testResult(id)))
	}
	m := c.DisplayMetrics()
	suite.Equal(uint32(2), m.Buffer.CurrentSize)
	suite.Equal(uint64(2), m.ResultsDropped)
}

func (suite *DisplayTestSuite) TestDisplay__SubmitRequiresRunning() {
	c := NewController(radar.NewDefaultDisplayConfig(), suite.log)
	require.NoError(suite.T(), c.Initialize())

	err := c.SubmitResult(testResult(1))
	suite.True(errors.Is(err, radar.ErrNotReady))
}

func (suite *DisplayTestSuite) TestDisplay__SaveToFile() {
	dir := suite.T().TempDir()
	conf := radar.NewDefaultDisplayConfig()
	conf.AutoRefresh = false
	conf.OutputPath = filepath.Join(dir, "frames")
	var out bytes.Buffer
	c := suite.newRunningController(conf, &out)
	defer c.Cleanup()

	_, err := c.SaveToFile("frame")
	suite.True(errors.Is(err, radar.ErrNotReady), "nothing rendered yet")

	require.NoError(suite.T(), c.SubmitResult(testResult(3)))
	require.NoError(suite.T(), c.RenderOnce())

	path, err := c.SaveToFile("frame")
	require.NoError(suite.T(), err)
	suite.Equal(filepath.Join(conf.OutputPath, "frame.txt"), path)

	content, err := os.ReadFile(path)
	require.NoError(suite.T(), err)
	suite.Contains(string(content), "packet")
}

func (suite *DisplayTestSuite) TestDisplay__Clear() {
	conf := radar.NewDefaultDisplayConfig()
	conf.AutoRefresh = false
	var out bytes.Buffer
	c := suite.newRunningController(conf, &out)
	defer c.Cleanup()

	require.NoError(suite.T(), c.SubmitResult(testResult(1)))
	require.NoError(suite.T(), c.SubmitResult(testResult(2)))
	suite.Equal(2, c.ClearDisplay())
	suite.Equal(uint32(0), c.DisplayMetrics().Buffer.CurrentSize)

	_, err := c.SaveToFile("frame")
	suite.True(errors.Is(err, radar.ErrNotReady), "clear must drop the retained frame")
}

func TestDisplay__RUN(t *testing.T) {
	crt := new(DisplayTestSuite)
	suite.Run(t, crt)
}
