package llm

import "context"

// MockClient scripts the LLM for tests. Every prompt it receives is recorded
// in Calls, so tests can assert how many extraction, observation, or merge
// passes ran and inspect what they were fed.
type MockClient struct {
	Response *Response
	Err      error
	Calls    []string
}

// Complete records the prompt and replays the scripted result. With nothing
// scripted it answers an empty completion, which the extraction parser
// treats as zero candidates.
func (m *MockClient) Complete(_ context.Context, prompt string) (*Response, error) {
	m.Calls = append(m.Calls, prompt)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Response == nil {
		return &Response{Provider: "mock"}, nil
	}
	return m.Response, nil
}
