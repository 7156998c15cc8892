package llm

import (
	"context"
	"sync"
)

// FakeClient is a scripted Client for tests. Replies are served in order;
// when the script is exhausted the Default reply is returned.
type FakeClient struct {
	mu sync.Mutex

	// Endpoint is the name reported by Name(). Defaults to "fake".
	Endpoint string

	// Script is consumed front to back, one entry per SubmitPrompt call.
	Script []FakeReply

	// Default is returned once the script is exhausted.
	Default FakeReply

	// Prompts records every prompt received, in order.
	Prompts []string
}

// FakeReply is one scripted response.
type FakeReply struct {
	Text string
	Err  error
}

// Name returns the endpoint identifier.
func (f *FakeClient) Name() string {
	if f.Endpoint == "" {
		return "fake"
	}
	return f.Endpoint
}

// SubmitPrompt records the prompt and returns the next scripted reply.
func (f *FakeClient) SubmitPrompt(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Prompts = append(f.Prompts, prompt)

	reply := f.Default
	if len(f.Script) > 0 {
		reply = f.Script[0]
		f.Script = f.Script[1:]
	}
	return reply.Text, reply.Err
}

// CallCount returns how many prompts have been submitted.
func (f *FakeClient) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Prompts)
}

// Ensure FakeClient implements Client at compile time.
var _ Client = (*FakeClient)(nil)
