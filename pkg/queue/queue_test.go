package queue

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/wendizhou99-cell/Radar/pkg/radar"
)

type QueueTestSuite struct {
	suite.Suite
}

func (suite *QueueTestSuite) TestQueue__FIFOOrder() {
	q := NewFIFO[int](10, radar.DropNewest)

	for i := 0; i < 5; i++ {
		suite.NoError(q.Enqueue(i))
	}

	for i := 0; i < 5; i++ {
		item, err := q.Dequeue(time.Second)
		suite.NoError(err)
		suite.Equal(i, item)
	}
	suite.Equal(0, q.Len())
}

func (suite *QueueTestSuite) TestQueue__DropNewest() {
	q := NewFIFO[int](2, radar.DropNewest)

	suite.NoError(q.Enqueue(1))
	suite.NoError(q.Enqueue(2))
	err := q.Enqueue(3)
	suite.Error(err)
	suite.True(errors.Is(err, radar.ErrQueueFull))

	item, err := q.Dequeue(time.Second)
	suite.NoError(err)
	suite.Equal(1, item, "rejected item must not displace queued ones")

	status := q.Status()
	suite.Equal(uint64(2), status.TotalReceived)
	suite.Equal(uint64(1), status.TotalDropped)
}

func (suite *QueueTestSuite) TestQueue__DropOldest() {
	q := NewFIFO[int](2, radar.DropOldest)

	suite.NoError(q.Enqueue(1))
	suite.NoError(q.Enqueue(2))
	suite.NoError(q.Enqueue(3), "drop_oldest must accept the new item")

	item, err := q.Dequeue(time.Second)
	suite.NoError(err)
	suite.Equal(2, item, "the oldest item must have been evicted")
	item, err = q.Dequeue(time.Second)
	suite.NoError(err)
	suite.Equal(3, item)

	suite.Equal(uint64(1), q.Status().TotalDropped)
}

func (suite *QueueTestSuite) TestQueue__CapacityInvariantUnderLoad() {
	const capacity = 100
	q := NewFIFO[int](capacity, radar.DropOldest)

	done := make(chan struct{})
	var producers sync.WaitGroup
	for p := 0; p < 4; p++ {
		producers.Add(1)
		go func(p int) {
			defer producers.Done()
			for i := 0; i < 2000; i++ {
				_ = q.Enqueue(p*10000 + i)
			}
		}(p)
	}

	//Slow consumer with frequent size checks while producers hammer the queue
	var consumer sync.WaitGroup
	consumer.Add(1)
	go func() {
		defer consumer.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			suite.LessOrEqual(q.Len(), capacity, "size must never exceed capacity")
			_, _ = q.TryDequeue()
			time.Sleep(time.Millisecond)
		}
	}()

	producers.Wait()
	close(done)
	consumer.Wait()

	status := q.Status()
	suite.LessOrEqual(status.CurrentSize, status.TotalCapacity)
	suite.LessOrEqual(status.PeakSize, status.TotalCapacity)
	suite.Greater(status.TotalDropped, uint64(0), "overload must have dropped packets")
	suite.Equal(uint64(8000), status.TotalReceived)
}

func (suite *QueueTestSuite) TestQueue__BlockOnFull() {
	q := NewFIFO[int](1, radar.BlockOnFull)
	suite.NoError(q.Enqueue(1))

	enqueued := make(chan error, 1)
	go func() {
		enqueued <- q.Enqueue(2)
	}()

	//The producer must still be blocked after a grace period
	select {
	case <-enqueued:
		suite.Fail("enqueue on a full blocking queue returned early")
	case <-time.After(50 * time.Millisecond):
	}

	item, err := q.Dequeue(time.Second)
	suite.NoError(err)
	suite.Equal(1, item)

	select {
	case err := <-enqueued:
		suite.NoError(err)
	case <-time.After(time.Second):
		suite.Fail("blocked producer was not released by the dequeue")
	}
}

func (suite *QueueTestSuite) TestQueue__BlockedProducerWokenByClose() {
	q := NewFIFO[int](1, radar.BlockOnFull)
	suite.NoError(q.Enqueue(1))

	enqueued := make(chan error, 1)
	go func() {
		enqueued <- q.Enqueue(2)
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-enqueued:
		suite.True(errors.Is(err, radar.ErrShutdown))
	case <-time.After(time.Second):
		suite.Fail("close did not wake the blocked producer")
	}
}

func (suite *QueueTestSuite) TestQueue__DequeueTimeout() {
	q := NewFIFO[int](10, radar.DropNewest)

	start := time.Now()
	_, err := q.Dequeue(50 * time.Millisecond)
	suite.True(errors.Is(err, radar.ErrTimeout))
	suite.GreaterOrEqual(time.Since(start), 50*time.Millisecond)
}

func (suite *QueueTestSuite) TestQueue__CloseDrainsBeforeShutdownError() {
	q := NewFIFO[int](10, radar.DropNewest)
	suite.NoError(q.Enqueue(1))
	suite.NoError(q.Enqueue(2))
	q.Close()

	suite.True(errors.Is(q.Enqueue(3), radar.ErrShutdown))

	item, err := q.Dequeue(time.Second)
	suite.NoError(err)
	suite.Equal(1, item)
	item, err = q.Dequeue(time.Second)
	suite.NoError(err)
	suite.Equal(2, item)

	_, err = q.Dequeue(time.Second)
	suite.True(errors.Is(err, radar.ErrShutdown))
}

func (suite *QueueTestSuite) TestQueue__CloseWakesBlockedConsumer() {
	q := NewFIFO[int](10, radar.DropNewest)

	dequeued := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(0)
		dequeued <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-dequeued:
		suite.True(errors.Is(err, radar.ErrShutdown))
	case <-time.After(time.Second):
		suite.Fail("close did not wake the blocked consumer")
	}
}

func (suite *QueueTestSuite) TestQueue__Clear() {
	q := NewFIFO[int](10, radar.DropNewest)
	for i := 0; i < 5; i++ {
		suite.NoError(q.Enqueue(i))
	}

	drained := q.Clear()
	suite.Equal([]int{0, 1, 2, 3, 4}, drained)
	suite.Equal(0, q.Len())
	suite.Equal(uint64(0), q.Status().TotalDropped, "cleared items are not drops")
}

type prioritized struct {
	id       int
	priority radar.PacketPriority
}

func priorityOf(p prioritized) radar.PacketPriority {
	return p.priority
}

func (suite *QueueTestSuite) TestQueue__PriorityOrder() {
	q := NewPriority[prioritized](10, radar.DropNewest, priorityOf)

	suite.NoError(q.Enqueue(prioritized{1, radar.PriorityLow}))
	suite.NoError(q.Enqueue(prioritized{2, radar.PriorityCritical}))
	suite.NoError(q.Enqueue(prioritized{3, radar.PriorityNormal}))
	suite.NoError(q.Enqueue(prioritized{4, radar.PriorityHigh}))

	var order []int
	for q.Len() > 0 {
		item, err := q.Dequeue(time.Second)
		require.NoError(suite.T(), err)
		order = append(order, item.id)
	}
	suite.Equal([]int{2, 4, 3, 1}, order)
}

func (suite *QueueTestSuite) TestQueue__PriorityTieBreakIsFIFO() {
	q := NewPriority[prioritized](20, radar.DropNewest, priorityOf)

	for i := 0; i < 10; i++ {
		suite.NoError(q.Enqueue(prioritized{i, radar.PriorityNormal}))
	}

	for i := 0; i < 10; i++ {
		item, err := q.Dequeue(time.Second)
		require.NoError(suite.T(), err)
		suite.Equal(i, item.id, "equal priorities must preserve submission order")
	}
}

func (suite *QueueTestSuite) TestQueue__PriorityEvictsLowestFirst() {
	q := NewPriority[prioritized](2, radar.DropOldest, priorityOf)

	suite.NoError(q.Enqueue(prioritized{1, radar.PriorityHigh}))
	suite.NoError(q.Enqueue(prioritized{2, radar.PriorityLow}))
	suite.NoError(q.Enqueue(prioritized{3, radar.PriorityNormal}))

	item, err := q.Dequeue(time.Second)
	suite.NoError(err)
	suite.Equal(1, item.id)
	item, err = q.Dequeue(time.Second)
	suite.NoError(err)
	suite.Equal(3, item.id, "overflow must have sacrificed the low priority item")
}

func (suite *QueueTestSuite) TestQueue__ProducerConsumerThroughput() {
	q := NewFIFO[int](50, radar.BlockOnFull)
	const total = 500

	received := make(map[int]bool, total)
	var mu sync.Mutex

	var consumers sync.WaitGroup
	for c := 0; c < 3; c++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for {
				item, err := q.Dequeue(0)
				if err != nil {
					return
				}
				mu.Lock()
				received[item] = true
				mu.Unlock()
			}
		}()
	}

	var producers sync.WaitGroup
	for p := 0; p < 5; p++ {
		producers.Add(1)
		go func(p int) {
			defer producers.Done()
			for i := 0; i < total/5; i++ {
				suite.NoError(q.Enqueue(p*1000 + i))
			}
		}(p)
	}

	producers.Wait()
	err := wait.PollImmediate(10*time.Millisecond, 5*time.Second, func() (bool, error) {
		return q.Len() == 0, nil
	})
	suite.NoError(err, "consumers did not drain the queue")
	q.Close()
	consumers.Wait()

	mu.Lock()
	suite.Len(received, total, "every produced item must be consumed exactly once")
	mu.Unlock()
}

func TestQueue__RUN(t *testing.T) {
	crt := new(QueueTestSuite)
	suite.Run(t, crt)
}
