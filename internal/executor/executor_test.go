package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sage/internal/actions"
	"sage/internal/metrics"
)

func newRegistry(t *testing.T, research actions.Handler) *actions.Registry {
	t.Helper()
	noop := actions.HandlerFunc(func(context.Context, actions.Request) (actions.Response, error) {
		return actions.Response{Text: "noop"}, nil
	})
	r, err := actions.NewRegistry(actions.Handlers{Research: research, Summarize: noop, Critique: noop, Strategy: noop})
	require.NoError(t, err)
	return r
}

func TestRun(t *testing.T) {
	sentinel := errors.New("backend unreachable")

	testCases := []struct {
		name        string
		handler     actions.HandlerFunc
		wantText    string
		wantErr     string
		wantSuccess bool
	}{
		{
			name: "success",
			handler: func(_ context.Context, req actions.Request) (actions.Response, error) {
				return actions.Response{Text: "found " + req.Query}, nil
			},
			wantText:    "found widgets",
			wantSuccess: true,
		},
		{
			name: "handler error is wrapped",
			handler: func(context.Context, actions.Request) (actions.Response, error) {
				return actions.Response{}, sentinel
			},
			wantErr: "stage research failed: backend unreachable",
		},
		{
			name: "panic becomes error",
			handler: func(context.Context, actions.Request) (actions.Response, error) {
				panic("nil map write")
			},
			wantErr: "panic in stage research: nil map write",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := New(newRegistry(t, tc.handler), nil, nil)
			tick := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
			e.now = func() time.Time {
				tick = tick.Add(250 * time.Millisecond)
				return tick
			}

			resp, sm, err := e.Run(context.Background(), actions.KindResearch, actions.Request{Query: "widgets"})

			assert.Equal(t, "research", sm.Stage)
			assert.Equal(t, int64(250), sm.DurationMs)
			assert.Equal(t, tc.wantSuccess, sm.Success)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tc.wantErr, err.Error())
				assert.Equal(t, tc.wantErr, sm.Err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantText, resp.Text)
		})
	}
}

func TestRun_ErrorIsUnwrappable(t *testing.T) {
	sentinel := errors.New("boom")
	e := New(newRegistry(t, actions.HandlerFunc(func(context.Context, actions.Request) (actions.Response, error) {
		return actions.Response{}, sentinel
	})), nil, nil)

	_, _, err := e.Run(context.Background(), actions.KindResearch, actions.Request{})
	assert.ErrorIs(t, err, sentinel)
}

func TestRun_CancelledContext(t *testing.T) {
	called := false
	e := New(newRegistry(t, actions.HandlerFunc(func(context.Context, actions.Request) (actions.Response, error) {
		called = true
		return actions.Response{}, nil
	})), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, sm, err := e.Run(ctx, actions.KindResearch, actions.Request{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.False(t, sm.Success)
}

func TestRun_RecordsCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollectors(reg)
	e := New(newRegistry(t, actions.HandlerFunc(func(context.Context, actions.Request) (actions.Response, error) {
		return actions.Response{}, nil
	})), c, nil)

	_, _, err := e.Run(context.Background(), actions.KindStrategy, actions.Request{})
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["sage_stage_runs_total"])
	assert.True(t, names["sage_stage_duration_seconds"])
}
