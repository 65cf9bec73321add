package llm

import (
	"context"
	"fmt"
	"testing"
)

func TestMockRecordsPrompts(t *testing.T) {
	m := &MockClient{Response: &Response{Content: "[]"}}

	for _, p := range []string{"first prompt", "second prompt"} {
		if _, err := m.Complete(context.Background(), p); err != nil {
			t.Fatalf("Complete: %v", err)
		}
	}
	if len(m.Calls) != 2 || m.Calls[1] != "second prompt" {
		t.Errorf("calls = %v, want both prompts in order", m.Calls)
	}
}

func TestMockUnscriptedAnswersEmpty(t *testing.T) {
	m := &MockClient{}

	resp, err := m.Complete(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp == nil || resp.Content != "" {
		t.Errorf("resp = %+v, want an empty completion", resp)
	}
}

func TestMockError(t *testing.T) {
	m := &MockClient{Err: fmt.Errorf("model offline")}

	if _, err := m.Complete(context.Background(), "anything"); err == nil {
		t.Error("expected the scripted error")
	}
	if len(m.Calls) != 1 {
		t.Errorf("calls = %d, want the failed prompt recorded", len(m.Calls))
	}
}
