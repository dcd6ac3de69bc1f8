package tmux

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeRunner records commands and plays back canned output.
type fakeRunner struct {
	calls [][]string
	out   string
	err   error
}

func (f *fakeRunner) Run(_ context.Context, args ...string) (string, error) {
	f.calls = append(f.calls, args)
	return f.out, f.err
}

func TestSendKeys(t *testing.T) {
	f := &fakeRunner{}
	require.NoError(t, SendKeys(context.Background(), f, "%3", "Enter"))
	require.Equal(t, [][]string{{"send-keys", "-t", "%3", "Enter"}}, f.calls)
}

func TestSendKeysWithoutTarget(t *testing.T) {
	f := &fakeRunner{}
	require.NoError(t, SendKeys(context.Background(), f, "", "C-c"))
	require.Equal(t, [][]string{{"send-keys", "C-c"}}, f.calls)
}

func TestSendLiteral(t *testing.T) {
	f := &fakeRunner{}
	require.NoError(t, SendLiteral(context.Background(), f, "%1", "ls -la"))
	require.Equal(t, [][]string{{"send-keys", "-t", "%1", "-l", "ls -la"}}, f.calls)
}

func TestSendLiteralEmptyTextIsNoOp(t *testing.T) {
	f := &fakeRunner{}
	require.NoError(t, SendLiteral(context.Background(), f, "%1", ""))
	require.Empty(t, f.calls)
}

func TestCurrentPaneTrimsOutput(t *testing.T) {
	f := &fakeRunner{out: "%5\n"}
	pane, err := CurrentPane(context.Background(), f)
	require.NoError(t, err)
	require.Equal(t, "%5", pane)
	require.Equal(t, [][]string{{"display-message", "-p", "#{pane_id}"}}, f.calls)
}

func TestCurrentSession(t *testing.T) {
	f := &fakeRunner{out: "work\n"}
	session, err := CurrentSession(context.Background(), f)
	require.NoError(t, err)
	require.Equal(t, "work", session)
}

func TestCLIRejectsEmptyCommand(t *testing.T) {
	c := New(time.Second)
	_, err := c.Run(context.Background())
	require.Error(t, err)
}

func TestCLIReportsMissingSession(t *testing.T) {
	// Point tmux at a socket that cannot exist so the command fails
	// fast regardless of the host environment.
	c := New(5 * time.Second)
	_, err := c.Run(context.Background(), "-S", "/dev/null/nope", "list-sessions")
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "tmux"))
}
