package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"time"

	"github.com/me2resh/me2resh-daily/internal/classify"
	"github.com/me2resh/me2resh-daily/internal/logger"
	"github.com/me2resh/me2resh-daily/internal/metrics"
	"github.com/me2resh/me2resh-daily/internal/report"
	"github.com/me2resh/me2resh-daily/internal/retry"
)

// Mailer renders a ScanResult as an HTML email and delivers it over SMTP.
// Delivery failures never fail the run: the report is already assembled and
// archived by the time the mailer sees it.
type Mailer struct {
	From     string
	To       []string
	Subject  string
	SMTPHost string
	SMTPPort int
	Username string
	Password string
}

var sectionTitles = map[string]string{
	classify.SectionTopSignals: "Top Signals",
	classify.SectionSecurity:   "Security Alerts",
	classify.SectionRegulatory: "Regulatory & Compliance",
	classify.SectionAI:         "AI Engineering",
	classify.SectionCloud:      "Cloud & Platform",
	classify.SectionHealth:     "Healthcare Tech",
	classify.SectionTrends:     "Emerging Trends",
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; max-width: 720px; margin: 0 auto;">
<h1>Daily Brief — {{.Date}}</h1>
{{range .Sections}}
{{if .Items}}
<h2>{{.Title}}</h2>
<ul>
{{range .Items}}
<li>
<a href="{{.SourceURL}}">{{.Title}}</a>
<small>[{{.Severity}}] {{.SourceName}} · {{range $i, $t := .Impact}}{{if $i}}, {{end}}{{$t}}{{end}}</small>
</li>
{{end}}
</ul>
{{end}}
{{end}}
<hr>
<p><small>Generated {{.Generated}} ({{.Timezone}}). {{.Total}} items selected from {{.RawCount}} candidates.</small></p>
</body>
</html>`))

type templateSection struct {
	Title string
	Items []classify.Scored
}

type templateData struct {
	Date      string
	Timezone  string
	Generated string
	Total     int
	RawCount  int
	Sections  []templateSection
}

// Render produces the HTML body for one report. Sections appear in taxonomy
// order; empty sections are skipped in the email even though they exist in
// the underlying result.
func Render(result report.ScanResult) (string, error) {
	data := templateData{
		Date:      result.Date,
		Timezone:  result.Timezone,
		Generated: result.Generated.Format(time.RFC3339),
		RawCount:  len(result.RawFeed),
	}

	for _, name := range classify.Sections() {
		items := result.Sections[name]
		data.Total += len(items)
		data.Sections = append(data.Sections, templateSection{
			Title: sectionTitles[name],
			Items: items,
		})
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render report email: %w", err)
	}
	return buf.String(), nil
}

// Send renders and delivers the report, retrying transient SMTP failures.
func (m *Mailer) Send(ctx context.Context, result report.ScanResult) error {
	body, err := Render(result)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("%s — %s", m.Subject, result.Date)
	msg := buildMessage(m.From, m.To, subject, body)
	addr := fmt.Sprintf("%s:%d", m.SMTPHost, m.SMTPPort)

	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.SMTPHost)
	}

	err = retry.Do(ctx, retry.Config{MaxAttempts: 3, Delay: 2 * time.Second, Backoff: true}, func() error {
		return smtp.SendMail(addr, auth, m.From, m.To, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to send report email: %w", err)
	}

	metrics.Global.IncrementEmailsSent()
	logger.Info("mailer: report sent", "to", len(m.To), "date", result.Date)
	return nil
}

func buildMessage(from string, to []string, subject, htmlBody string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}
