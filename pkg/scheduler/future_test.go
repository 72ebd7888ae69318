package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/wendizhou99-cell/Radar/pkg/radar"
)

type FutureTestSuite struct {
	suite.Suite
}

func (suite *FutureTestSuite) TestFuture__ResolveOnce() {
	f := NewFuture[int]()
	suite.False(f.Resolved())

	f.Resolve(42)
	f.Resolve(99)
	f.Fail(fmt.Errorf("too late"))

	suite.True(f.Resolved())
	value, err := f.Get(time.Second)
	suite.NoError(err)
	suite.Equal(42, value, "only the first resolution counts")
}

func (suite *FutureTestSuite) TestFuture__FailOnce() {
	f := NewFuture[int]()
	boom := fmt.Errorf("boom")
	f.Fail(boom)
	f.Resolve(42)

	value, err := f.Get(time.Second)
	suite.Equal(boom, err)
	suite.Equal(0, value)
}

func (suite *FutureTestSuite) TestFuture__ConcurrentResolvers() {
	f := NewFuture[int]()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.Resolve(i)
		}()
	}
	wg.Wait()

	first, err := f.Get(time.Second)
	suite.NoError(err)

	//every waiter observes the same value
	for i := 0; i < 10; i++ {
		value, err := f.Get(time.Second)
		suite.NoError(err)
		suite.Equal(first, value)
	}
}

func (suite *FutureTestSuite) TestFuture__GetTimeout() {
	f := NewFuture[int]()
	_, err := f.Get(30 * time.Millisecond)
	suite.True(errors.Is(err, radar.ErrTimeout))

	//a timed out Get does not consume the resolution
	f.Resolve(7)
	value, err := f.Get(time.Second)
	suite.NoError(err)
	suite.Equal(7, value)
}

func (suite *FutureTestSuite) TestFuture__DoneChannel() {
	f := NewFuture[string]()
	select {
	case <-f.Done():
		suite.Fail("done must not close before resolution")
	default:
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		f.Resolve("ready")
	}()

	select {
	case <-f.Done():
	case <-time.After(time.Second):
		suite.Fail("done channel never closed")
	}
	value, err := f.Get(0)
	suite.NoError(err)
	suite.Equal("ready", value)
}

func TestFuture__RUN(t *testing.T) {
	crt := new(FutureTestSuite)
	suite.Run(t, crt)
}
