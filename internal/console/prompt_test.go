package console_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/stackup/internal/console"
	"github.com/slok/stackup/internal/input"
	"github.com/slok/stackup/internal/model"
)

func strPtr(s string) *string { return &s }

func TestLinePrompter(t *testing.T) {
	tests := map[string]struct {
		in        string
		reqs      []model.InputRequest
		expResps  []model.InputResponse
		expOutput string
	}{
		"Lines should answer the requests in order": {
			in: "admin\nsecret\n",
			reqs: []model.InputRequest{
				{Title: "Filament", Label: "Panel id"},
				{Label: "Password", Secret: true},
			},
			expResps: []model.InputResponse{
				{Value: "admin", Accepted: true},
				{Value: "secret", Accepted: true},
			},
			expOutput: "Filament\nPanel id: Password: ",
		},
		"An empty line should use the default": {
			in:   "\n",
			reqs: []model.InputRequest{{Label: "Panel id", Default: strPtr("admin")}},
			expResps: []model.InputResponse{
				{Value: "admin", Accepted: true},
			},
			expOutput: "Panel id [admin]: ",
		},
		"Windows line endings should be trimmed": {
			in:       "yes\r\n",
			reqs:     []model.InputRequest{{Label: "Continue"}},
			expResps: []model.InputResponse{{Value: "yes", Accepted: true}},
		},
		"The end of the input should decline the requests": {
			in:   "only\n",
			reqs: []model.InputRequest{{Label: "First"}, {Label: "Second"}},
			expResps: []model.InputResponse{
				{Value: "only", Accepted: true},
				{Accepted: false},
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			var out bytes.Buffer
			p, err := console.NewLinePrompter(console.LinePrompterConfig{In: strings.NewReader(test.in), Out: &out})
			require.NoError(err)

			gotResps := []model.InputResponse{}
			for _, req := range test.reqs {
				resp, err := p.Prompt(context.Background(), req)
				require.NoError(err)
				gotResps = append(gotResps, resp)
			}

			assert.Equal(test.expResps, gotResps)
			if test.expOutput != "" {
				assert.Equal(test.expOutput, out.String())
			}
		})
	}
}

type blockingReader struct{ ch chan struct{} }

func (b blockingReader) Read([]byte) (int, error) {
	<-b.ch
	return 0, nil
}

func TestLinePrompterCanceled(t *testing.T) {
	in := blockingReader{ch: make(chan struct{})}
	t.Cleanup(func() { close(in.ch) })

	p, err := console.NewLinePrompter(console.LinePrompterConfig{In: in})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = p.Prompt(ctx, model.InputRequest{Label: "Never"})
	assert.ErrorIs(t, err, model.ErrCanceled)
}

func TestServe(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	bridge, err := input.NewBridge(input.BridgeConfig{})
	require.NoError(err)
	p, err := console.NewLinePrompter(console.LinePrompterConfig{In: strings.NewReader("deploy\n")})
	require.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error)
	go func() { served <- console.Serve(ctx, bridge, p, nil) }()

	got, err := bridge.Request(ctx, model.InputRequest{Label: "User"})
	require.NoError(err)
	assert.Equal("deploy", got)

	// The input is exhausted so the next request is declined.
	_, err = bridge.Request(ctx, model.InputRequest{Label: "Password", Secret: true})
	assert.ErrorIs(err, model.ErrInputDeclined)

	cancel()
	select {
	case err := <-served:
		assert.NoError(err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve didn't stop")
	}
}
