package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cadforge/codepilot/model"
)

type fakeClient struct {
	text string
}

func (f *fakeClient) Complete(context.Context, *model.Request) (*model.Response, error) {
	return &model.Response{Text: f.text}, nil
}
func (f *fakeClient) Stream(context.Context, *model.Request) (model.Streamer, error) { return nil, nil }

func TestReviewApproved(t *testing.T) {
	fc := &fakeClient{text: `{"approved": true, "issues": []}`}
	r := New(fc)
	result, err := r.Review(context.Background(), "req", "plan", "code")
	require.NoError(t, err)
	require.True(t, result.Approved)
	require.Empty(t, result.Issues)
}

func TestReviewRejectedWithIssues(t *testing.T) {
	fc := &fakeClient{text: "Here is my verdict:\n{\"approved\": false, \"issues\": [\"missing fillet feature\"]}\nThanks."}
	r := New(fc)
	result, err := r.Review(context.Background(), "req", "plan", "code")
	require.NoError(t, err)
	require.False(t, result.Approved)
	require.Equal(t, []string{"missing fillet feature"}, result.Issues)
}

func TestReviewMalformedResponse(t *testing.T) {
	fc := &fakeClient{text: "I cannot review this."}
	r := New(fc)
	_, err := r.Review(context.Background(), "req", "plan", "code")
	require.Error(t, err)
}
