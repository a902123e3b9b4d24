package shutdown

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/dftd-labeler/pkg/logging"
)

func TestShutdownRunsInReverseOrder(t *testing.T) {
	m := New(time.Second, logging.Nop())
	var order []string
	for _, name := range []string{"tracing", "store", "server"} {
		name := name
		m.Register(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	require.NoError(t, m.Shutdown())
	assert.Equal(t, []string{"server", "store", "tracing"}, order)

	order = nil
	require.NoError(t, m.Shutdown())
	assert.Empty(t, order, "functions run once")
}

func TestShutdownReturnsFirstError(t *testing.T) {
	m := New(time.Second, logging.Nop())
	boom := errors.New("boom")
	ran := false
	m.Register("first", func(context.Context) error { ran = true; return nil })
	m.Register("second", func(context.Context) error { return boom })

	err := m.Shutdown()
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "second")
	assert.True(t, ran, "later functions still run")
}

type closer struct{ closed bool }

func (c *closer) Close() error { c.closed = true; return nil }

func TestCloseResource(t *testing.T) {
	c := &closer{}
	require.NoError(t, CloseResource(c)(context.Background()))
	assert.True(t, c.closed)
}

func TestContextCancelledBySignal(t *testing.T) {
	m := New(time.Second, logging.Nop())
	ctx, stop := m.Context(context.Background())
	defer stop()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGINT))

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled")
	}
	assert.Eventually(t, func() bool { return m.Signal() == syscall.SIGINT }, time.Second, 10*time.Millisecond)
}

func TestStopReleasesContext(t *testing.T) {
	m := New(time.Second, logging.Nop())
	ctx, stop := m.Context(context.Background())
	stop()
	<-ctx.Done()
	assert.Nil(t, m.Signal())
}
