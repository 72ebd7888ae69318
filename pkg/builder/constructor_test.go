package builder

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/wendizhou99-cell/Radar/pkg/lifecycle"
	"github.com/wendizhou99-cell/Radar/pkg/radar"
)

type ConstructorTestSuite struct {
	suite.Suite
}

func (suite *ConstructorTestSuite) TestConstructor__MissingParam() {
	//newBadModule(...) expects a single parameter
	ctor := newConstructor(newBadModule)
	_, err := ctor.call()
	require.Error(suite.T(), err, "constructed module with a missing creator param")
}

func (suite *ConstructorTestSuite) TestConstructor__TooManyParams() {
	//newBadModule(...) expects a single parameter
	param1 := &badModuleParams{}
	ctor := newConstructor(newBadModule, param1, "extra-param")
	_, err := ctor.call()
	require.Error(suite.T(), err, "constructed module with mismatching params list")
}

func (suite *ConstructorTestSuite) TestConstructor__MismatchingParamType() {
	ctor := newConstructor(newBadModule, "not-your-param-type")
	_, err := ctor.call()
	require.Error(suite.T(), err, "constructed module with mismatching param type")
}

func (suite *ConstructorTestSuite) TestConstructor__MissingReturnValue() {
	emptyFunc := func() {}
	ctor := newConstructor(emptyFunc)
	_, err := ctor.call()
	require.Error(suite.T(), err, "constructor with a missing return value")
}

func (suite *ConstructorTestSuite) TestConstructor__InvalidModuleReturnType() {
	invalidModuleConstructor := func() int { return 42 }
	ctor := newConstructor(invalidModuleConstructor)
	_, err := ctor.call()
	require.Error(suite.T(), err, "constructor does not return Module")
}

func (suite *ConstructorTestSuite) TestConstructor__InvalidErrorReturnType() {
	invalidErrorType := func() (lifecycle.Module, int) {
		return newBadModule(&badModuleParams{}), 42
	}
	ctor := newConstructor(invalidErrorType)
	_, err := ctor.call()
	require.Error(suite.T(), err, "constructor does not return a valid error type")
}

func (suite *ConstructorTestSuite) TestConstructor__TooManyReturnValues() {
	invalidErrorType := func() (lifecycle.Module, error, error) {
		return newBadModule(&badModuleParams{}), nil, nil
	}
	ctor := newConstructor(invalidErrorType)
	_, err := ctor.call()
	require.Error(suite.T(), err, "constructor returns too many values")
}

func (suite *ConstructorTestSuite) TestConstructor__CreateModuleWithNoError() {
	moduleConstructor := func(params *badModuleParams) (lifecycle.Module, error) {
		return newBadModule(params), nil
	}
	param := &badModuleParams{}
	ctor := newConstructor(moduleConstructor, param)
	_, err := ctor.call()
	require.NoError(suite.T(), err, "constructor failed: %s", err)
}

func (suite *ConstructorTestSuite) TestConstructor__CreateModuleWithError() {
	moduleConstructor := func(params *badModuleParams) (lifecycle.Module, error) {
		return newBadModule(params), fmt.Errorf("some test error")
	}
	param := &badModuleParams{}
	ctor := newConstructor(moduleConstructor, param)
	_, err := ctor.call()
	require.Error(suite.T(), err, "constructor should fail due to callee error")
}

func (suite *ConstructorTestSuite) TestConstructor__CreateNilModule() {
	moduleConstructor := func() (lifecycle.Module, error) {
		return nil, nil
	}
	ctor := newConstructor(moduleConstructor)
	_, err := ctor.call()
	require.Error(suite.T(), err, "constructor should fail due to returning nil module")
}

func (suite *ConstructorTestSuite) TestConstructor__ConstructModule() {
	//Create constructor entity
	ctor := newConstructor(newBadModule, &badModuleParams{})

	//Create the module from the constructor entity
	module, err := ctor.call()
	require.NoError(suite.T(), err, "failed to construct module: %s", err)

	//Walk the created module through its lifecycle
	require.Equal(suite.T(), radar.StateUninitialized, module.State())
	require.NoError(suite.T(), module.Initialize())
	require.NoError(suite.T(), module.Start())
	require.Equal(suite.T(), radar.StateRunning, module.State())
	require.NoError(suite.T(), module.Cleanup())
	require.Equal(suite.T(), radar.StateShutdown, module.State())
}

func TestConstructor__RUN(t *testing.T) {
	crt := new(ConstructorTestSuite)
	suite.Run(t, crt)
}
