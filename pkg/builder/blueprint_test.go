package builder

import (
	"io/ioutil"
	"os"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type BlueprintLoaderTestSuite struct {
	suite.Suite
}

func (suite *BlueprintLoaderTestSuite) TestBlueprintLoader__MissingFile() {
	_, err := newBlueprintLoader("/no/such/file")
	require.Error(suite.T(), err, "no error for a missing blueprint file")
}

func (suite *BlueprintLoaderTestSuite) TestBlueprintLoader__EmptyFile() {
	file, err := createTemporaryFile([]byte{})
	require.NoError(suite.T(), err, "failed to create empty layout file: %s", err)
	defer os.Remove(file.Name())

	_, err = newBlueprintLoader(file.Name())
	require.Error(suite.T(), err, "loaded blueprint without modules section")
}

func (suite *BlueprintLoaderTestSuite) TestBlueprintLoader__LoadLayout() {
	layout := `
modules:
- name: Receiver1
  type: receiver
- name: Processor1
  type: processor
packetRoutes:
- source: Receiver1
  destination: Processor1
resultRoutes:
- source: Processor1
  destination: Receiver1
`
	file, err := createTemporaryFile([]byte(layout))
	require.NoError(suite.T(), err, "failed to create layout file: %s", err)
	defer os.Remove(file.Name())

	loader, err := newBlueprintLoader(file.Name())
	require.NoError(suite.T(), err, "failed to load blueprint: %s", err)

	expectedModules := []map[string]string{
		{
			"name": "Receiver1",
			"type": "receiver",
		},
		{
			"name": "Processor1",
			"type": "processor",
		},
	}
	require.True(suite.T(), reflect.DeepEqual(loader.modules, expectedModules), "result=%v expected=%v", loader.modules, expectedModules)

	expectedPacketRoutes := []map[string]string{
		{
			"source":      "Receiver1",
			"destination": "Processor1",
		},
	}
	require.True(suite.T(), reflect.DeepEqual(loader.packetRoutes, expectedPacketRoutes), "result=%v expected=%v", loader.packetRoutes, expectedPacketRoutes)

	expectedResultRoutes := []map[string]string{
		{
			"source":      "Processor1",
			"destination": "Receiver1",
		},
	}
	require.True(suite.T(), reflect.DeepEqual(loader.resultRoutes, expectedResultRoutes), "result=%v expected=%v", loader.resultRoutes, expectedResultRoutes)
}

func (suite *BlueprintLoaderTestSuite) TestBlueprintLoader__UnknownPacketSourceModule() {
	layout := `
modules:
- name: Module1
  type: Type1
- name: Module2
  type: Type2
packetRoutes:
- source: UFO
  destination: Module2
`
	file, err := createTemporaryFile([]byte(layout))
	require.NoError(suite.T(), err, "failed to create layout file: %s", err)
	defer os.Remove(file.Name())

	_, err = newBlueprintLoader(file.Name())
	require.Error(suite.T(), err, "loaded blueprint with unknown packet source module")
}

func (suite *BlueprintLoaderTestSuite) TestBlueprintLoader__UnknownPacketDestinationModule() {
	layout := `
modules:
- name: Module1
  type: Type1
- name: Module2
  type: Type2
packetRoutes:
- source: Module1
  destination: UFO
`
	file, err := createTemporaryFile([]byte(layout))
	require.NoError(suite.T(), err, "failed to create layout file: %s", err)
	defer os.Remove(file.Name())

	_, err = newBlueprintLoader(file.Name())
	require.Error(suite.T(), err, "loaded blueprint with unknown packet destination module")
}

func (suite *BlueprintLoaderTestSuite) TestBlueprintLoader__UnknownResultSourceModule() {
	layout := `
modules:
- name: Module1
  type: Type1
- name: Module2
  type: Type2
resultRoutes:
- source: UFO
  destination: Module2
`
	file, err := createTemporaryFile([]byte(layout))
	require.NoError(suite.T(), err, "failed to create layout file: %s", err)
	defer os.Remove(file.Name())

	_, err = newBlueprintLoader(file.Name())
	require.Error(suite.T(), err, "loaded blueprint with unknown result source module")
}

func (suite *BlueprintLoaderTestSuite) TestBlueprintLoader__UnknownResultDestinationModule() {
	layout := `
modules:
- name: Module1
  type: Type1
- name: Module2
  type: Type2
resultRoutes:
- source: Module1
  destination: UFO
`
	file, err := createTemporaryFile([]byte(layout))
	require.NoError(suite.T(), err, "failed to create layout file: %s", err)
	defer os.Remove(file.Name())

	_, err = newBlueprintLoader(file.Name())
	require.Error(suite.T(), err, "loaded blueprint with unknown result destination module")
}

func (suite *BlueprintLoaderTestSuite) TestBlueprintLoader__DuplicateModuleName() {
	layout := `
modules:
- name: Module1
  type: Type1
- name: Module1
  type: Type2
`
	file, err := createTemporaryFile([]byte(layout))
	require.NoError(suite.T(), err, "failed to create layout file: %s", err)
	defer os.Remove(file.Name())

	_, err = newBlueprintLoader(file.Name())
	require.Error(suite.T(), err, "loaded blueprint with duplicated module name")
}

func (suite *BlueprintLoaderTestSuite) TestBlueprintLoader__MissingValue() {
	layout := `
modules:
- name: Module1
  type:
`
	file, err := createTemporaryFile([]byte(layout))
	require.NoError(suite.T(), err, "failed to create layout file: %s", err)
	defer os.Remove(file.Name())

	_, err = newBlueprintLoader(file.Name())
	require.Error(suite.T(), err, "loaded blueprint with missing key value")
}

func (suite *BlueprintLoaderTestSuite) TestBlueprintLoader__BrokenLayout() {
	layout := `
modules:
- name: Module1
  type
`
	file, err := createTemporaryFile([]byte(layout))
	require.NoError(suite.T(), err, "failed to create layout file: %s", err)
	defer os.Remove(file.Name())

	_, err = newBlueprintLoader(file.Name())
	require.Error(suite.T(), err, "loaded blueprint with broken layout file")
}

func (suite *BlueprintLoaderTestSuite) TestBlueprintLoader__MissingModuleName() {
	layout := `
modules:
- type: Type1
`
	file, err := createTemporaryFile([]byte(layout))
	require.NoError(suite.T(), err, "failed to create layout file: %s", err)
	defer os.Remove(file.Name())

	_, err = newBlueprintLoader(file.Name())
	require.Error(suite.T(), err, "loaded blueprint with missing module name")
}

func (suite *BlueprintLoaderTestSuite) TestBlueprintLoader__MissingModuleType() {
	layout := `
modules:
- name: Module1
`
	file, err := createTemporaryFile([]byte(layout))
	require.NoError(suite.T(), err, "failed to create layout file: %s", err)
	defer os.Remove(file.Name())

	_, err = newBlueprintLoader(file.Name())
	require.Error(suite.T(), err, "loaded blueprint with missing module type")
}

func (suite *BlueprintLoaderTestSuite) TestBlueprintLoader__MissingRouteSource() {
	layout := `
modules:
- name: Module1
  type: Type1
- name: Module2
  type: Type2
packetRoutes:
- destination: Module2
`
	file, err := createTemporaryFile([]byte(layout))
	require.NoError(suite.T(), err, "failed to create layout file: %s", err)
	defer os.Remove(file.Name())

	_, err = newBlueprintLoader(file.Name())
	require.Error(suite.T(), err, "loaded blueprint with missing route source")
}

func (suite *BlueprintLoaderTestSuite) TestBlueprintLoader__MissingRouteDestination() {
	layout := `
modules:
- name: Module1
  type: Type1
- name: Module2
  type: Type2
resultRoutes:
- source: Module1
`
	file, err := createTemporaryFile([]byte(layout))
	require.NoError(suite.T(), err, "failed to create layout file: %s", err)
	defer os.Remove(file.Name())

	_, err = newBlueprintLoader(file.Name())
	require.Error(suite.T(), err, "loaded blueprint with missing route destination")
}

func (suite *BlueprintLoaderTestSuite) TestBlueprintLoader__SelfRoute() {
	layout := `
modules:
- name: Module1
  type: Type1
packetRoutes:
- source: Module1
  destination: Module1
`
	file, err := createTemporaryFile([]byte(layout))
	require.NoError(suite.T(), err, "failed to create layout file: %s", err)
	defer os.Remove(file.Name())

	_, err = newBlueprintLoader(file.Name())
	require.Error(suite.T(), err, "loaded blueprint with a module routed to itself")
}

//Helper function for creating a temporary file with specific contents
func createTemporaryFile(content []byte) (*os.File, error) {
	file, err := ioutil.TempFile("", "blueprint_")
	if err != nil {
		return nil, err
	}

	if _, err = file.Write(content); err != nil {
		return nil, err
	}

	return file, nil
}

func TestBlueprintLoader__RUN(t *testing.T) {
	crt := new(BlueprintLoaderTestSuite)
	suite.Run(t, crt)
}
