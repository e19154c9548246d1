package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTopicGuard(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		reply      string
		err        error
		wantInput  bool
		wantOutput bool
	}{
		{
			name:       "on topic",
			reply:      `{"is_unrelated_query": false, "contains_off_topic_content": false, "reasoning": "about ROS"}`,
			wantInput:  false,
			wantOutput: false,
		},
		{
			name:       "off topic in code fence",
			reply:      "```json\n{\"is_unrelated_query\": true, \"contains_off_topic_content\": true, \"reasoning\": \"cooking\"}\n```",
			wantInput:  true,
			wantOutput: true,
		},
		{
			name:  "malformed verdict fails open",
			reply: "I think this is unrelated",
		},
		{
			name: "classifier error fails open",
			err:  errors.New("rate limited"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &stubCompleter{fn: func(string, string) (string, error) { return tt.reply, tt.err }}
			guard := NewTopicGuard(completer, testPersona, zap.NewNop())

			assert.Equal(t, tt.wantInput, guard.InputTripped(ctx, "How do I bake bread?"))
			assert.Equal(t, tt.wantOutput, guard.OutputTripped(ctx, "Preheat the oven."))
			assert.Equal(t, 2, completer.Calls())
			assert.Contains(t, completer.systems[0], "ROS 2 and simulation")
		})
	}
}

func TestTopicGuard_NoCompleter(t *testing.T) {
	guard := NewTopicGuard(nil, testPersona, zap.NewNop())
	assert.False(t, guard.InputTripped(context.Background(), "anything"))
	assert.False(t, guard.OutputTripped(context.Background(), "anything"))
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSON("prefix {\"a\":1} suffix"))
	assert.Equal(t, "no json", extractJSON("no json"))
}
