package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/AltairaLabs/roboshen/runtime/i18n"
	"github.com/AltairaLabs/roboshen/runtime/transcript"
)

func newTestDispatcher(t *testing.T, caps ...Capability) *Dispatcher {
	t.Helper()
	r := NewRegistry()
	for _, c := range caps {
		require.NoError(t, r.Register(c))
	}
	d, err := NewDispatcher(DispatcherConfig{Registry: r, Timeout: time.Second})
	require.NoError(t, err)
	return d
}

func funcTool(name string, fn func(ctx context.Context, args json.RawMessage) (*Outcome, error)) *Func {
	return &Func{
		Desc: &Descriptor{Name: name, Description: name, InputSchema: json.RawMessage(`{"type":"object"}`)},
		Fn:   fn,
	}
}

func collect(d *Dispatcher, batch []Invocation) []Result {
	var results []Result
	d.Dispatch(context.Background(), batch, func(r Result) { results = append(results, r) })
	return results
}

func TestNewDispatcher_RequiresRegistry(t *testing.T) {
	_, err := NewDispatcher(DispatcherConfig{})
	assert.Error(t, err)
}

func TestDispatch_ExactlyOneResultPerInvocation(t *testing.T) {
	d := newTestDispatcher(t,
		echoTool("echo"),
		funcTool("fail", func(context.Context, json.RawMessage) (*Outcome, error) {
			return nil, errors.New("backend down")
		}),
	)

	var batch []Invocation
	for i := 0; i < 20; i++ {
		name := "echo"
		args := json.RawMessage(fmt.Sprintf(`{"prompt":"p%d"}`, i))
		if i%3 == 0 {
			name = "fail"
		}
		if i%7 == 0 {
			name = "unknown"
		}
		batch = append(batch, Invocation{ID: fmt.Sprintf("id-%d", i), Name: name, Args: args})
	}

	results := collect(d, batch)
	require.Len(t, results, len(batch))

	seen := map[string]int{}
	for _, r := range results {
		seen[r.Invocation.ID]++
		resp := r.Response()
		assert.Equal(t, r.Invocation.ID, resp.ID)
		assert.Equal(t, r.Invocation.Name, resp.Name)
		assert.NotEmpty(t, resp.Result)
	}
	for _, inv := range batch {
		assert.Equal(t, 1, seen[inv.ID], "invocation %s", inv.ID)
	}
}

func TestDispatch_FailureOutcome(t *testing.T) {
	d := newTestDispatcher(t, funcTool("fail", func(context.Context, json.RawMessage) (*Outcome, error) {
		return nil, errors.New("boom")
	}))

	results := collect(d, []Invocation{{ID: "1", Name: "fail"}})
	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, StatusFailed, r.Status)
	assert.EqualError(t, r.Err, "boom")
	assert.Equal(t, FailureAck, r.Outcome.Ack)
	assert.Equal(t, transcript.KindText, r.Outcome.Kind)
	assert.Equal(t, i18n.Default().Text(i18n.ToolFailureNotice), r.Outcome.Payload)
}

func TestDispatch_UnknownTool(t *testing.T) {
	d := newTestDispatcher(t)
	results := collect(d, []Invocation{{ID: "1", Name: "ghost"}})
	require.Len(t, results, 1)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.ErrorIs(t, results[0].Err, ErrToolNotFound)
	assert.Equal(t, FailureAck, results[0].Response().Result)
}

func TestDispatch_InvalidArgs(t *testing.T) {
	d := newTestDispatcher(t, echoTool("echo"))
	results := collect(d, []Invocation{{ID: "1", Name: "echo", Args: json.RawMessage(`{}`)}})
	require.Len(t, results, 1)
	assert.Equal(t, StatusFailed, results[0].Status)
	var ve *ValidationError
	assert.ErrorAs(t, results[0].Err, &ve)
}

func TestDispatch_PanicRecovered(t *testing.T) {
	d := newTestDispatcher(t, funcTool("panic", func(context.Context, json.RawMessage) (*Outcome, error) {
		panic("kaboom")
	}))

	results := collect(d, []Invocation{{ID: "1", Name: "panic"}})
	require.Len(t, results, 1)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.ErrorIs(t, results[0].Err, ErrCapabilityPanic)
	assert.Contains(t, results[0].Err.Error(), "kaboom")
}

func TestDispatch_Timeout(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(funcTool("slow", func(ctx context.Context, _ json.RawMessage) (*Outcome, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})))
	d, err := NewDispatcher(DispatcherConfig{Registry: r, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	results := collect(d, []Invocation{{ID: "1", Name: "slow"}})
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
}

func TestDispatch_CompletionOrder(t *testing.T) {
	release := make(chan struct{})
	d := newTestDispatcher(t,
		funcTool("slow", func(context.Context, json.RawMessage) (*Outcome, error) {
			<-release
			return &Outcome{Kind: transcript.KindText, Payload: "slow", Ack: "slow"}, nil
		}),
		funcTool("fast", func(context.Context, json.RawMessage) (*Outcome, error) {
			return &Outcome{Kind: transcript.KindText, Payload: "fast", Ack: "fast"}, nil
		}),
	)

	var order []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Dispatch(context.Background(),
			[]Invocation{{ID: "1", Name: "slow"}, {ID: "2", Name: "fast"}},
			func(r Result) {
				order = append(order, r.Outcome.Payload)
				if r.Outcome.Payload == "fast" {
					close(release)
				}
			})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch did not finish")
	}
	assert.Equal(t, []string{"fast", "slow"}, order)
}

func TestDispatch_DeliverNeverOverlaps(t *testing.T) {
	d := newTestDispatcher(t, echoTool("echo"))

	var active, maxActive int32
	var batch []Invocation
	for i := 0; i < 16; i++ {
		batch = append(batch, Invocation{ID: fmt.Sprint(i), Name: "echo", Args: json.RawMessage(`{"prompt":"x"}`)})
	}
	d.Dispatch(context.Background(), batch, func(Result) {
		n := atomic.AddInt32(&active, 1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&active, -1)
	})
	assert.Equal(t, int32(1), maxActive)
}

func TestDispatch_RateLimited(t *testing.T) {
	var mu sync.Mutex
	var starts []time.Time
	r := NewRegistry()
	require.NoError(t, r.Register(funcTool("t", func(context.Context, json.RawMessage) (*Outcome, error) {
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()
		return &Outcome{Kind: transcript.KindText, Payload: "ok", Ack: "ok"}, nil
	})))
	d, err := NewDispatcher(DispatcherConfig{Registry: r, RateLimit: rate.Every(30 * time.Millisecond), Burst: 1})
	require.NoError(t, err)

	start := time.Now()
	results := collect(d, []Invocation{{ID: "1", Name: "t"}, {ID: "2", Name: "t"}, {ID: "3", Name: "t"}})
	require.Len(t, results, 3)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestDispatch_CanceledContextStillDelivers(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("echo")))
	d, err := NewDispatcher(DispatcherConfig{Registry: r, RateLimit: rate.Every(time.Hour), Burst: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var results []Result
	d.Dispatch(ctx, []Invocation{{ID: "1", Name: "echo", Args: json.RawMessage(`{"prompt":"x"}`)}}, func(r Result) {
		results = append(results, r)
	})
	require.Len(t, results, 1)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}

func TestInvocationsFrom(t *testing.T) {
	assert.Empty(t, InvocationsFrom(nil))
}
