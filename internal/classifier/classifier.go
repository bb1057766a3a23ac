// Package classifier assigns a structural role to a scraped post.
//
// The rules form an ordered decision table evaluated top to bottom. The
// first rule that matches decides the tag. A rule whose signals could not be
// read is skipped, and a post that matches nothing is Ordinary, so the
// classifier never drops a post on its own.
package classifier

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/ibeckermayer/threadkeeper/internal/types"
)

// QuoteTextThreshold is the own-text length, in runes, from which a quote
// post counts as substantial.
const QuoteTextThreshold = 50

// MaxReplyButtons is the largest action-button count still treated as a
// reply or truncated view. Full posts expose 4.
const MaxReplyButtons = 3

// Rule is one row of the decision table.
// Match returns an error when a signal it needs could not be evaluated.
type Rule struct {
	Name  string
	Match func(p types.PostRecord) (bool, error)
	Tag   func(p types.PostRecord) types.RoleTag
}

// Verdict is the outcome of classifying one post.
type Verdict struct {
	Tag  types.RoleTag
	Rule string  // name of the matching rule, "default" when none matched
	Errs []error // signals that could not be evaluated on the way
}

// DefaultRule names the fallback verdict.
const DefaultRule = "default"

// Rules is the decision table in priority order.
var Rules = []Rule{
	{
		Name:  "quote",
		Match: isQuote,
		Tag:   quoteTag,
	},
	{
		Name:  "reply_indicator",
		Match: hasVisibleReplyIndicator,
		Tag:   constant(types.Reply),
	},
	{
		Name:  "action_buttons",
		Match: hasFewActionButtons,
		Tag:   constant(types.Reply),
	},
}

// Classify returns the role tag of p.
func Classify(p types.PostRecord) types.RoleTag {
	return Decide(p).Tag
}

// Decide evaluates the decision table against p.
func Decide(p types.PostRecord) Verdict {
	var errs []error
	for _, r := range Rules {
		ok, err := r.Match(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			return Verdict{Tag: r.Tag(p), Rule: r.Name, Errs: errs}
		}
	}
	return Verdict{Tag: types.Ordinary, Rule: DefaultRule, Errs: errs}
}

// Apply classifies every usable post in results in place.
func Apply(results []types.Result) {
	for i := range results {
		if results[i].OK() {
			results[i].Post.Role = Classify(results[i].Post)
		}
	}
}

// OwnTextLength is the trimmed length of the post's own text in runes.
func OwnTextLength(p types.PostRecord) int {
	return utf8.RuneCountInString(strings.TrimSpace(p.Text))
}

// isQuote matches when either quote signal is positive. It only fails to
// evaluate when no signal is positive and at least one errored.
func isQuote(p types.PostRecord) (bool, error) {
	nested, marker := p.Signals.NestedPost, p.Signals.QuoteMarker
	if (nested.OK() && nested.Value) || (marker.OK() && marker.Value) {
		return true, nil
	}
	if err := errors.Join(nested.Error(), marker.Error()); err != nil {
		return false, err
	}
	return false, nil
}

func quoteTag(p types.PostRecord) types.RoleTag {
	if p.HasMedia() || OwnTextLength(p) >= QuoteTextThreshold {
		return types.QuoteMedia
	}
	return types.QuoteShort
}

func hasVisibleReplyIndicator(p types.PostRecord) (bool, error) {
	ind := p.Signals.ReplyIndicator
	if !ind.OK() {
		return false, ind.Error()
	}
	if !ind.Value {
		return false, nil
	}
	vis := p.Signals.ReplyVisible
	if !vis.OK() {
		return false, vis.Error()
	}
	return vis.Value, nil
}

func hasFewActionButtons(p types.PostRecord) (bool, error) {
	b := p.Signals.ActionButtons
	if !b.OK() {
		return false, b.Error()
	}
	return b.Value <= MaxReplyButtons, nil
}

func constant(tag types.RoleTag) func(types.PostRecord) types.RoleTag {
	return func(types.PostRecord) types.RoleTag { return tag }
}
