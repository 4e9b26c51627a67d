package action_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KosmosisDire/LCMware/action"
	"github.com/KosmosisDire/LCMware/adapters/inmemory"
	"github.com/KosmosisDire/LCMware/bus"
	lcmerr "github.com/KosmosisDire/LCMware/contract/errors"
)

type trajGoal struct {
	Steps int `json:"steps"`
}

type trajFeedback struct {
	Step int `json:"step"`
}

type trajResult struct {
	Visited int `json:"visited"`
}

const trajChannel = "/demo/act/follow_trajectory"

const waitTime = 2 * time.Second

func newNode(t *testing.T, tr *inmemory.Transport) *bus.Bus {
	t.Helper()

	b, err := bus.New(tr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	return b
}

func startServer(t *testing.T, b *bus.Bus, h action.GoalHandler[trajGoal, trajFeedback, trajResult], opts ...action.ServerOption) *action.Server[trajGoal, trajFeedback, trajResult] {
	t.Helper()

	srv, err := action.NewServer(b, trajChannel, h, opts...)
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Close() })

	return srv
}

func newTrajClient(t *testing.T, b *bus.Bus, opts ...action.ClientOption) *action.Client[trajGoal, trajFeedback, trajResult] {
	t.Helper()

	cli, err := action.NewClient[trajGoal, trajFeedback, trajResult](b, trajChannel, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cli.Close() })

	return cli
}

func TestGoalLifecycle(t *testing.T) {
	tr := inmemory.New()
	serverNode := newNode(t, tr)
	clientNode := newNode(t, tr)

	release := make(chan struct{})
	startServer(t, serverNode, func(ctx context.Context, goal trajGoal, fb *action.FeedbackWriter[trajFeedback]) (trajResult, error) {
		<-release
		for i := 1; i <= goal.Steps; i++ {
			if err := fb.Send(ctx, trajFeedback{Step: i}); err != nil {
				return trajResult{}, err
			}
		}
		return trajResult{Visited: goal.Steps}, nil
	})

	cli := newTrajClient(t, clientNode, action.WithClientName("act_test"))
	assert.Equal(t, "act_test", cli.Name())
	assert.Equal(t, trajChannel, cli.Channel())

	h, err := cli.SendGoal(t.Context(), trajGoal{Steps: 3})
	require.NoError(t, err)
	assert.Contains(t, h.GoalID(), "act_test_")
	assert.Equal(t, action.StatusAccepted, h.Status())

	var mu sync.Mutex
	var steps []int
	var seen []action.Status
	h.OnFeedback(func(fb trajFeedback) {
		mu.Lock()
		steps = append(steps, fb.Step)
		seen = append(seen, h.Status())
		mu.Unlock()
	})
	close(release)

	res, err := h.Result(t.Context(), waitTime)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Visited)
	assert.Equal(t, action.StatusSucceeded, h.Status())

	select {
	case <-h.Done():
	default:
		t.Fatal("Done must be closed once the goal is terminal")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, steps, "feedback must arrive in send order")
	for i, st := range seen {
		assert.Equal(t, action.StatusExecuting, st, "feedback %d must observe an executing goal", i)
	}
}

func TestFeedbackObserversDoNotReplay(t *testing.T) {
	tr := inmemory.New()
	node := newNode(t, tr)

	release := make(chan struct{})
	gate2 := make(chan struct{})
	startServer(t, node, func(ctx context.Context, _ trajGoal, fb *action.FeedbackWriter[trajFeedback]) (trajResult, error) {
		<-release
		if err := fb.Send(ctx, trajFeedback{Step: 1}); err != nil {
			return trajResult{}, err
		}
		<-gate2
		if err := fb.Send(ctx, trajFeedback{Step: 2}); err != nil {
			return trajResult{}, err
		}
		return trajResult{Visited: 2}, nil
	})

	cli := newTrajClient(t, node)
	h, err := cli.SendGoal(t.Context(), trajGoal{Steps: 2})
	require.NoError(t, err)

	first := make(chan int, 4)
	h.OnFeedback(func(fb trajFeedback) { first <- fb.Step })
	close(release)

	select {
	case step := <-first:
		require.Equal(t, 1, step)
	case <-time.After(waitTime):
		t.Fatal("timed out waiting for the first feedback")
	}

	var mu sync.Mutex
	var late []int
	h.OnFeedback(func(fb trajFeedback) {
		mu.Lock()
		late = append(late, fb.Step)
		mu.Unlock()
	})
	close(gate2)

	_, err = h.Result(t.Context(), waitTime)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{2}, late, "observers registered late must not see replayed feedback")
}

func TestConcurrentGoalsResolveIndependently(t *testing.T) {
	tr := inmemory.New()
	node := newNode(t, tr)

	startServer(t, node, func(ctx context.Context, goal trajGoal, fb *action.FeedbackWriter[trajFeedback]) (trajResult, error) {
		for i := 1; i <= goal.Steps; i++ {
			if err := fb.Send(ctx, trajFeedback{Step: i}); err != nil {
				return trajResult{}, err
			}
		}
		return trajResult{Visited: goal.Steps}, nil
	})

	cli := newTrajClient(t, node)

	const goals = 8
	handles := make([]*action.Handle[trajFeedback, trajResult], goals)
	ids := make(map[string]bool, goals)
	for i := 0; i < goals; i++ {
		h, err := cli.SendGoal(t.Context(), trajGoal{Steps: i + 1})
		require.NoError(t, err)
		require.False(t, ids[h.GoalID()], "goal ids must be unique")
		ids[h.GoalID()] = true
		handles[i] = h
	}

	for i := 0; i < goals; i++ {
		res, err := handles[i].Result(t.Context(), waitTime)
		require.NoError(t, err, "goal %d", i)
		assert.Equal(t, i+1, res.Visited, "goal %d got someone else's result", i)
	}
}

func TestResultTimeoutWithoutServer(t *testing.T) {
	tr := inmemory.New()
	node := newNode(t, tr)

	cli := newTrajClient(t, node)
	h, err := cli.SendGoal(t.Context(), trajGoal{Steps: 1})
	require.NoError(t, err)

	start := time.Now()
	_, err = h.Result(t.Context(), 80*time.Millisecond)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, lcmerr.ErrTimeout)
	var te *lcmerr.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, trajChannel, te.Channel)
	assert.Equal(t, 80*time.Millisecond, te.Wait)
	assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond)
	assert.Less(t, elapsed, waitTime)

	// the goal is still outstanding; a later Result may be issued again
	assert.Equal(t, action.StatusAccepted, h.Status())
}

func TestInvalidResultTimeoutRejected(t *testing.T) {
	tr := inmemory.New()
	node := newNode(t, tr)

	cli := newTrajClient(t, node)
	h, err := cli.SendGoal(t.Context(), trajGoal{Steps: 1})
	require.NoError(t, err)

	for _, d := range []time.Duration{0, -time.Second} {
		_, err := h.Result(t.Context(), d)
		assert.ErrorIs(t, err, lcmerr.ErrInvalidTimeout, "timeout %s", d)
	}
}

func TestResultContextCancel(t *testing.T) {
	tr := inmemory.New()
	node := newNode(t, tr)

	cli := newTrajClient(t, node)
	h, err := cli.SendGoal(t.Context(), trajGoal{Steps: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err = h.Result(ctx, 5*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), waitTime)
}

func TestClientCloseAbandonsGoals(t *testing.T) {
	tr := inmemory.New()
	node := newNode(t, tr)

	cli, err := action.NewClient[trajGoal, trajFeedback, trajResult](node, trajChannel)
	require.NoError(t, err)

	h, err := cli.SendGoal(t.Context(), trajGoal{Steps: 1})
	require.NoError(t, err)

	require.NoError(t, cli.Close())
	require.NoError(t, cli.Close())

	select {
	case <-h.Done():
	case <-time.After(waitTime):
		t.Fatal("Close must resolve outstanding handles")
	}
	_, err = h.Result(t.Context(), waitTime)
	assert.ErrorIs(t, err, lcmerr.ErrClosed)

	_, err = cli.SendGoal(t.Context(), trajGoal{Steps: 1})
	assert.ErrorIs(t, err, lcmerr.ErrClosed)
}

func TestBusCloseFailsBlockedResult(t *testing.T) {
	tr := inmemory.New()
	node, err := bus.New(tr)
	require.NoError(t, err)

	cli, err := action.NewClient[trajGoal, trajFeedback, trajResult](node, trajChannel)
	require.NoError(t, err)

	h, err := cli.SendGoal(context.Background(), trajGoal{Steps: 1})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := h.Result(context.Background(), 5*time.Second)
		done <- err
	}()

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, node.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, lcmerr.ErrClosed)
	case <-time.After(waitTime):
		t.Fatal("Result must fail fast on shutdown, not wait out its timeout")
	}
}

func TestNewClientValidation(t *testing.T) {
	tr := inmemory.New()
	node := newNode(t, tr)

	_, err := action.NewClient[trajGoal, trajFeedback, trajResult](nil, trajChannel)
	assert.ErrorIs(t, err, lcmerr.ErrInvalidArgument)

	_, err = action.NewClient[trajGoal, trajFeedback, trajResult](node, "")
	assert.ErrorIs(t, err, lcmerr.ErrInvalidArgument)

	_, err = action.NewClient[trajGoal, trajFeedback, trajResult](node, trajChannel,
		action.WithClientName("way_too_long_for_a_client_name"))
	assert.ErrorIs(t, err, lcmerr.ErrInvalidArgument)
}
