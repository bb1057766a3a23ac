package classifier

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/threadkeeper/internal/types"
)

var errStale = errors.New("element is stale")

// fullPost is an ordinary post with every signal readable.
func fullPost() types.PostRecord {
	return types.PostRecord{
		ID:           1,
		AuthorHandle: "alice",
		Text:         "hello",
		Signals: types.Signals{
			NestedPost:     types.Observed(false),
			QuoteMarker:    types.Observed(false),
			ReplyIndicator: types.Observed(false),
			ReplyVisible:   types.Observed(false),
			ActionButtons:  types.Observed(4),
		},
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(p *types.PostRecord)
		wantTag  types.RoleTag
		wantRule string
	}{
		{
			name:     "ordinary",
			modify:   func(p *types.PostRecord) {},
			wantTag:  types.Ordinary,
			wantRule: DefaultRule,
		},
		{
			name: "nested quote with short text",
			modify: func(p *types.PostRecord) {
				p.Signals.NestedPost = types.Observed(true)
			},
			wantTag:  types.QuoteShort,
			wantRule: "quote",
		},
		{
			name: "quote marker with own media",
			modify: func(p *types.PostRecord) {
				p.Signals.QuoteMarker = types.Observed(true)
				p.MediaRefs = []string{"https://pbs.twimg.com/media/a.jpg"}
			},
			wantTag:  types.QuoteMedia,
			wantRule: "quote",
		},
		{
			name: "quote with text at threshold",
			modify: func(p *types.PostRecord) {
				p.Signals.NestedPost = types.Observed(true)
				p.Text = strings.Repeat("あ", QuoteTextThreshold)
			},
			wantTag:  types.QuoteMedia,
			wantRule: "quote",
		},
		{
			name: "quote with text just under threshold",
			modify: func(p *types.PostRecord) {
				p.Signals.NestedPost = types.Observed(true)
				p.Text = "  " + strings.Repeat("あ", QuoteTextThreshold-1) + "  "
			},
			wantTag:  types.QuoteShort,
			wantRule: "quote",
		},
		{
			name: "quote wins over reply indicator",
			modify: func(p *types.PostRecord) {
				p.Signals.NestedPost = types.Observed(true)
				p.Signals.ReplyIndicator = types.Observed(true)
				p.Signals.ReplyVisible = types.Observed(true)
			},
			wantTag:  types.QuoteShort,
			wantRule: "quote",
		},
		{
			name: "visible reply indicator",
			modify: func(p *types.PostRecord) {
				p.Signals.ReplyIndicator = types.Observed(true)
				p.Signals.ReplyVisible = types.Observed(true)
			},
			wantTag:  types.Reply,
			wantRule: "reply_indicator",
		},
		{
			name: "hidden reply indicator falls through",
			modify: func(p *types.PostRecord) {
				p.Signals.ReplyIndicator = types.Observed(true)
			},
			wantTag:  types.Ordinary,
			wantRule: DefaultRule,
		},
		{
			name: "few action buttons",
			modify: func(p *types.PostRecord) {
				p.Signals.ActionButtons = types.Observed(3)
			},
			wantTag:  types.Reply,
			wantRule: "action_buttons",
		},
		{
			name: "quote probe error falls through to reply rule",
			modify: func(p *types.PostRecord) {
				p.Signals.NestedPost = types.Failed[bool](errStale)
				p.Signals.ReplyIndicator = types.Observed(true)
				p.Signals.ReplyVisible = types.Observed(true)
			},
			wantTag:  types.Reply,
			wantRule: "reply_indicator",
		},
		{
			name: "one positive quote signal survives the other erroring",
			modify: func(p *types.PostRecord) {
				p.Signals.NestedPost = types.Failed[bool](errStale)
				p.Signals.QuoteMarker = types.Observed(true)
			},
			wantTag:  types.QuoteShort,
			wantRule: "quote",
		},
		{
			name: "visibility error falls through to button rule",
			modify: func(p *types.PostRecord) {
				p.Signals.ReplyIndicator = types.Observed(true)
				p.Signals.ReplyVisible = types.Failed[bool](errStale)
				p.Signals.ActionButtons = types.Observed(2)
			},
			wantTag:  types.Reply,
			wantRule: "action_buttons",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := fullPost()
			tt.modify(&p)

			v := Decide(p)
			assert.Equal(t, tt.wantTag, v.Tag)
			assert.Equal(t, tt.wantRule, v.Rule)
			assert.Equal(t, tt.wantTag, Classify(p))
		})
	}
}

func TestClassify_AllSignalsFailedIsOrdinary(t *testing.T) {
	p := types.PostRecord{
		ID:   7,
		Text: "anything",
		Signals: types.Signals{
			NestedPost:     types.Failed[bool](errStale),
			QuoteMarker:    types.Failed[bool](errStale),
			ReplyIndicator: types.Failed[bool](errStale),
			ReplyVisible:   types.Failed[bool](errStale),
			ActionButtons:  types.Failed[int](errStale),
		},
	}

	v := Decide(p)
	assert.Equal(t, types.Ordinary, v.Tag)
	assert.Equal(t, DefaultRule, v.Rule)
	assert.Len(t, v.Errs, 3)
}

func TestClassify_UnsetSignalsAreOrdinary(t *testing.T) {
	p := types.PostRecord{ID: 1, Text: "hi"}

	v := Decide(p)
	assert.Equal(t, types.Ordinary, v.Tag)
	assert.Equal(t, DefaultRule, v.Rule)
	require.Len(t, v.Errs, 3)
	for _, err := range v.Errs {
		assert.ErrorIs(t, err, types.ErrNotProbed)
	}

	var zero types.Probe[int]
	assert.False(t, zero.OK())
	assert.True(t, types.Observed(0).OK())
}

func TestApply(t *testing.T) {
	reply := fullPost()
	reply.Signals.ActionButtons = types.Observed(1)

	results := []types.Result{
		types.Accept(fullPost()),
		types.Accept(reply),
		types.Skipped(reply, types.SkipUnavailable, errStale),
	}
	Apply(results)

	assert.Equal(t, types.Ordinary, results[0].Post.Role)
	assert.Equal(t, types.Reply, results[1].Post.Role)
	assert.Equal(t, types.Ordinary, results[2].Post.Role, "skipped results are left alone")
}

func TestOwnTextLength(t *testing.T) {
	assert.Equal(t, 3, OwnTextLength(types.PostRecord{Text: "  日本語 \n"}))
	assert.Equal(t, 0, OwnTextLength(types.PostRecord{}))
}
