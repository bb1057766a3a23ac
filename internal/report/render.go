package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ibeckermayer/threadkeeper/internal/types"
)

const previewLen = 60

// Render writes the run counts and the admitted Units as tables.
func Render(w io.Writer, s *Summary) {
	counts := table.NewWriter()
	counts.SetOutputMirror(w)
	counts.SetStyle(table.StyleRounded)
	counts.SetTitle(fmt.Sprintf("run %s (%s, @%s)", s.RunID, s.Mode, s.Author))
	counts.AppendHeader(table.Row{"Stage", "Count"})
	counts.AppendRows([]table.Row{
		{"threads visited", s.ThreadsVisited},
		{"threads partial", s.ThreadsPartial},
		{"threads skipped", s.TotalThreadsSkipped()},
	})
	for _, reason := range sortedKeys(s.ThreadsSkipped) {
		counts.AppendRow(table.Row{"  " + reason, s.ThreadsSkipped[reason]})
	}
	for _, reason := range sortedKeys(s.PostsSkipped) {
		counts.AppendRow(table.Row{"posts skipped: " + string(reason), s.PostsSkipped[reason]})
	}
	counts.AppendSeparator()
	counts.AppendRows([]table.Row{
		{"units assembled", s.Assembled},
		{"ad dropped", s.AdDropped},
		{"keyword filtered", s.Filtered},
		{"already registered", s.Duplicates},
		{"admitted", s.Admitted},
		{"persisted", s.Persisted},
		{"failed", s.Failed},
		{"quota remaining", s.QuotaRemaining},
	})
	counts.Render()

	if len(s.Units) == 0 {
		return
	}
	RenderUnits(w, s.Units)
}

// RenderUnits writes one row per Unit.
func RenderUnits(w io.Writer, units []types.Unit) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ID", "Author", "Likes", "Views", "Media", "Text"})
	for _, u := range units {
		t.AppendRow(table.Row{
			u.PrimaryID,
			"@" + u.Author,
			u.Metrics.Likes,
			impressions(u.Metrics),
			len(u.Media),
			Preview(u.Text, previewLen),
		})
	}
	t.Render()
}

// Preview flattens text onto one line and cuts it to max runes.
func Preview(text string, max int) string {
	flat := strings.Join(strings.Fields(text), " ")
	r := []rune(flat)
	if len(r) <= max {
		return flat
	}
	return string(r[:max-1]) + "…"
}

func impressions(m types.Metrics) string {
	if m.Impressions == nil {
		return "-"
	}
	return fmt.Sprint(*m.Impressions)
}

// Email is a rendered summary ready for a notifier
type Email struct {
	Subject   string
	HTMLBody  string
	PlainBody string
}

// BuildEmail renders the summary as an email.
func BuildEmail(s *Summary) (*Email, error) {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"preview":     func(text string) string { return Preview(text, 140) },
		"impressions": impressions,
	}).Parse(emailTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	var html bytes.Buffer
	if err := tmpl.Execute(&html, s); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	var plain bytes.Buffer
	Render(&plain, s)

	return &Email{
		Subject: fmt.Sprintf("threadkeeper: %d new from @%s (%s)",
			s.Admitted, s.Author, s.StartedAt.Format("Jan 2 15:04")),
		HTMLBody:  html.String(),
		PlainBody: plain.String(),
	}, nil
}

const emailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>threadkeeper run {{.RunID}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; }
        .unit { border-bottom: 1px solid #eee; padding: 12px 0; }
        .metrics { color: #666; font-size: 13px; }
        .link { color: #1da1f2; text-decoration: none; }
    </style>
</head>
<body>
    <h1>@{{.Author}}: {{.Admitted}} registered</h1>
    <p>{{.ThreadsVisited}} threads visited · {{.Assembled}} units assembled · {{.Duplicates}} already known · {{.Failed}} failed</p>
    {{range .Units}}
    <div class="unit">
        <div>{{preview .Text}}</div>
        <div class="metrics">{{.Metrics.Likes}} likes · {{.Metrics.Reposts}} reposts · {{impressions .Metrics}} views · {{len .Media}} media</div>
        <a href="{{.URL}}" class="link">View on X →</a>
    </div>
    {{end}}
</body>
</html>`
