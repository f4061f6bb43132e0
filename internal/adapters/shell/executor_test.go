package shell_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/udpbd-vexfat/internal/adapters/shell"
	"go.trai.ch/udpbd-vexfat/internal/core/domain"
)

type captureLogger struct {
	mu    sync.Mutex
	infos []string
	errs  []error
}

func (l *captureLogger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}

func (l *captureLogger) Warn(string) {}

func (l *captureLogger) Error(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, err)
}

func TestExecutor_StreamsOutput(t *testing.T) {
	log := &captureLogger{}
	e := shell.NewExecutor(log)

	cmd := &domain.Command{Argv: []string{"sh", "-c", "echo one; echo two"}}
	require.NoError(t, e.Execute(context.Background(), cmd, nil))

	assert.Contains(t, log.infos, "one")
	assert.Contains(t, log.infos, "two")
}

func TestExecutor_NonZeroExit(t *testing.T) {
	log := &captureLogger{}
	e := shell.NewExecutor(log)

	cmd := &domain.Command{Argv: []string{"sh", "-c", "exit 3"}}
	err := e.Execute(context.Background(), cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command failed")
}

func TestExecutor_EnvironmentOverrides(t *testing.T) {
	log := &captureLogger{}
	e := shell.NewExecutor(log)

	cmd := &domain.Command{
		Argv:        []string{"sh", "-c", "echo $GREETING"},
		Environment: map[string]string{"GREETING": "override"},
	}
	require.NoError(t, e.Execute(context.Background(), cmd, []string{"GREETING=base"}))
	assert.Contains(t, log.infos, "override")
}

func TestExecutor_EmptyCommand(t *testing.T) {
	e := shell.NewExecutor(&captureLogger{})
	assert.NoError(t, e.Execute(context.Background(), &domain.Command{}, nil))
}

func TestExecutor_ContextCancelled(t *testing.T) {
	e := shell.NewExecutor(&captureLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := &domain.Command{Argv: []string{"sleep", "10"}}
	require.Error(t, e.Execute(ctx, cmd, nil))
}
