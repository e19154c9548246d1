package service

import (
	"context"
	"errors"
	"testing"

	"github.com/liliang-cn/askbook/internal/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("answered", func(t *testing.T) {
		f := newFixture(t)
		f.completer.fn = answerWith("  ROS 2 uses DDS.\n")
		chunks := []domain.RetrievedChunk{
			{SourcePath: "ros2.md", Text: "ROS 2 uses DDS."},
			{SourcePath: "gazebo.md", Text: "Gazebo simulates."},
		}

		answer := f.generator.Generate(ctx, "What does ROS 2 use?", chunks)
		assert.Equal(t, Answer{Text: "ROS 2 uses DDS.", Outcome: OutcomeAnswered}, answer)
		assert.True(t, answer.Grounded())

		prompt := f.completer.LastUser()
		assert.Contains(t, prompt, "Source: ros2.md\nContent: ROS 2 uses DDS.\n\nSource: gazebo.md\nContent: Gazebo simulates.")
		assert.Contains(t, prompt, "Question: What does ROS 2 use?")
		assert.Contains(t, f.completer.systems[0], "the Robotics book")
	})

	t.Run("fallback phrase becomes no grounding", func(t *testing.T) {
		f := newFixture(t)
		f.completer.fn = answerWith("Sorry! I don't know based on the selected text.")

		answer := f.generator.Generate(ctx, "q", nil)
		assert.Equal(t, OutcomeNoGrounding, answer.Outcome)
		assert.Equal(t, "I don't know based on the selected text.", answer.Text)
		assert.False(t, answer.Grounded())
	})

	t.Run("upstream failure", func(t *testing.T) {
		f := newFixture(t)
		f.completer.fn = func(string, string) (string, error) { return "", errors.New("503") }

		answer := f.generator.Generate(ctx, "q", nil)
		assert.Equal(t, OutcomeDegraded, answer.Outcome)
		assert.Equal(t, testPersona.ScopeMessage(), answer.Text)
		assert.Contains(t, answer.Text, "ROS 2 and simulation")
	})

	t.Run("no completer", func(t *testing.T) {
		answer := NewGenerator(&Runtime{}, testPersona, zap.NewNop()).Generate(ctx, "q", nil)
		assert.Equal(t, Answer{Text: NotReadyMessage, Outcome: OutcomeDegraded}, answer)
	})
}
