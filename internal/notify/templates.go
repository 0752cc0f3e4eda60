package notify

import (
	"fmt"
	"html/template"
	"strings"
	"time"
)

// Template data shared by the email bodies.

type requestView struct {
	SapCode     string
	Category    string
	Items       string
	Description string
	Total       string
	ExpenseDate string
}

type submittedData struct {
	RequesterName string
	FirstRole     string
	Request       requestView
}

type progressData struct {
	RequesterName string
	ApproverName  string
	ApproverRole  string
	NextRole      string
	Level         int
	Request       requestView
}

type nextApproverData struct {
	ApproverName  string
	RequesterName string
	RequesterRole string
	PrevName      string
	PrevRole      string
	Level         int
	Request       requestView
}

type finalData struct {
	RequesterName string
	ApproverName  string
	ApproverRole  string
	Request       requestView
}

type rejectionData struct {
	RequesterName string
	ApproverName  string
	ApproverRole  string
	Remarks       string
	Level         int
	Request       requestView
}

const requestTableTmpl = `
<table style="border-collapse:collapse;margin:16px 0">
  <tr><td style="padding:4px 12px 4px 0;color:#555">SAP code</td><td>{{.SapCode}}</td></tr>
  <tr><td style="padding:4px 12px 4px 0;color:#555">Category</td><td>{{.Category}}</td></tr>
  <tr><td style="padding:4px 12px 4px 0;color:#555">Items</td><td>{{.Items}}</td></tr>
  {{if .Description}}<tr><td style="padding:4px 12px 4px 0;color:#555">Description</td><td>{{.Description}}</td></tr>{{end}}
  <tr><td style="padding:4px 12px 4px 0;color:#555">Amount</td><td>{{.Total}}</td></tr>
  <tr><td style="padding:4px 12px 4px 0;color:#555">Expense date</td><td>{{.ExpenseDate}}</td></tr>
</table>`

var templates = template.Must(template.New("request_table").Parse(requestTableTmpl))

func init() {
	template.Must(templates.New("submitted").Parse(`
<p>Hi {{.RequesterName}},</p>
<p>Your reimbursement request was <b>submitted</b> and is now waiting for the
{{.FirstRole}} at level 1.</p>
{{template "request_table" .Request}}
<p>You will be notified at each step.</p>`))

	template.Must(templates.New("progress").Parse(`
<p>Hi {{.RequesterName}},</p>
<p>Your reimbursement request passed level {{.Level}}: <b>{{.ApproverName}}</b>
({{.ApproverRole}}) approved it. It is now waiting for the {{.NextRole}}.</p>
{{template "request_table" .Request}}
<p>You will be notified at each step.</p>`))

	template.Must(templates.New("next_approver").Parse(`
<p>Hi {{.ApproverName}},</p>
<p>A reimbursement request from <b>{{.RequesterName}}</b> ({{.RequesterRole}})
is ready for your approval at level {{.Level}}. The previous level was approved
by {{.PrevName}} ({{.PrevRole}}).</p>
{{template "request_table" .Request}}
<p>Please review it in the reimbursement portal.</p>`))

	template.Must(templates.New("final").Parse(`
<p>Hi {{.RequesterName}},</p>
<p>Your reimbursement request is <b>fully approved</b>. The final approval was
given by {{.ApproverName}} ({{.ApproverRole}}).</p>
{{template "request_table" .Request}}
<p>Finance will process the payout with the next run.</p>`))

	template.Must(templates.New("rejection").Parse(`
<p>Hi {{.RequesterName}},</p>
<p>Your reimbursement request was <b>rejected</b> at level {{.Level}} by
{{.ApproverName}} ({{.ApproverRole}}).</p>
<p>Reason: <i>{{.Remarks}}</i></p>
{{template "request_table" .Request}}
<p>You may correct the request and submit it again.</p>`))
}

func render(name string, data any) (string, error) {
	var b strings.Builder
	if err := templates.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("notify: render %s: %w", name, err)
	}
	return b.String(), nil
}

// formatAmount renders cents as a currency string, e.g. 123456 -> "1,234.56".
func formatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := cents / 100
	frac := cents % 100

	digits := fmt.Sprintf("%d", whole)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return fmt.Sprintf("%s%s.%02d", sign, b.String(), frac)
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
