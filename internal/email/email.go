// Package email delivers mentor alerts for at-risk students. Delivery is a
// collaborator of the scoring pipeline, never part of it: callers send an
// alert after prediction, and a failed send never affects scores.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/edumetric/edumetric/internal/analysis"
)

// Alert is one mentor notification about a student needing attention.
type Alert struct {
	Recipient string
	RNO       string
	Name      string
	Dept      string
	Year      int
	CurrSem   int

	Prediction analysis.Prediction
	Features   analysis.Features
}

// Service sends mentor alerts.
type Service interface {
	SendAlert(ctx context.Context, alert Alert) error
}

const alertSubjectFormat = "[EduMetric] Alert: Student %s Needs Attention"

var alertTemplate = template.Must(template.New("alert").Parse(`<html>
<body style="font-family: Arial, sans-serif; margin: 20px;">
  <h1>EduMetric - Student Alert</h1>
  <p>Immediate attention required for the following student.</p>

  <h2>Student Information</h2>
  <table border="0" cellpadding="6">
    <tr><th align="left">Name</th><td><strong>{{.Name}}</strong></td></tr>
    <tr><th align="left">Register Number</th><td>{{.RNO}}</td></tr>
    <tr><th align="left">Department</th><td>{{.Dept}}</td></tr>
    <tr><th align="left">Year / Semester</th><td>Year {{.Year}} / Sem {{.CurrSem}}</td></tr>
  </table>

  <h2>Predictions</h2>
  <table border="0" cellpadding="6">
    <tr><th align="left">Performance</th><td>{{.Prediction.PerformanceLabel}}</td></tr>
    <tr><th align="left">Risk Level</th><td>{{.Prediction.RiskLabel}}</td></tr>
    <tr><th align="left">Dropout Risk</th><td>{{.Prediction.DropoutLabel}}</td></tr>
  </table>

  <h2>Performance Metrics</h2>
  <table border="0" cellpadding="6">
    <tr><th align="left">Overall Performance</th><td>{{printf "%.1f" .Features.PerformanceOverall}}%</td></tr>
    <tr><th align="left">Attendance</th><td>{{printf "%.1f" .Features.AttendancePct}}%</td></tr>
    <tr><th align="left">Internal Marks</th><td>{{printf "%.1f" .Features.InternalPct}}%</td></tr>
    <tr><th align="left">Behavior Score</th><td>{{printf "%.1f" .Features.BehaviorPct}}%</td></tr>
    <tr><th align="left">Risk Score</th><td>{{printf "%.1f" .Features.RiskScore}}%</td></tr>
  </table>

  <h2>Recommended Actions</h2>
  <ul>
    <li>Schedule a counseling session with the student</li>
    <li>Contact parent/guardian for collaborative support</li>
    <li>Provide additional academic resources and tutoring</li>
    <li>Monitor attendance and engagement closely</li>
  </ul>

  <p style="font-size: 12px; color: #666;">Automated alert from the EduMetric analytics system.</p>
</body>
</html>`))

// render produces the subject and HTML body for an alert.
func render(alert Alert) (subject, html string, err error) {
	name := alert.Name
	if name == "" {
		name = alert.RNO
	}
	subject = fmt.Sprintf(alertSubjectFormat, name)

	var buf bytes.Buffer
	if err := alertTemplate.Execute(&buf, alert); err != nil {
		return "", "", fmt.Errorf("rendering alert email: %w", err)
	}
	return subject, buf.String(), nil
}
