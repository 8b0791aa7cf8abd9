package email

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumetric/edumetric/internal/analysis"
)

func sampleAlert() Alert {
	return Alert{
		Recipient: "mentor@example.com",
		RNO:       "21CS001",
		Name:      "Asha",
		Dept:      "CSE",
		Year:      1,
		CurrSem:   3,
		Prediction: analysis.Prediction{
			PerformanceLabel: "poor",
			RiskLabel:        "high",
			DropoutLabel:     "high",
		},
		Features: analysis.Features{
			PerformanceOverall: 42.5,
			AttendancePct:      55.0,
			InternalPct:        40.0,
			BehaviorPct:        60.0,
			RiskScore:          57.5,
		},
	}
}

func TestRenderAlert(t *testing.T) {
	subject, html, err := render(sampleAlert())
	require.NoError(t, err)

	assert.Equal(t, "[EduMetric] Alert: Student Asha Needs Attention", subject)
	assert.Contains(t, html, "21CS001")
	assert.Contains(t, html, "CSE")
	assert.Contains(t, html, "Year 1 / Sem 3")
	assert.Contains(t, html, "poor")
	assert.Contains(t, html, "42.5%")
	assert.Contains(t, html, "55.0%")
}

func TestRenderAlertFallsBackToRNO(t *testing.T) {
	alert := sampleAlert()
	alert.Name = ""

	subject, _, err := render(alert)
	require.NoError(t, err)
	assert.Equal(t, "[EduMetric] Alert: Student 21CS001 Needs Attention", subject)
}

func TestConsoleServiceSendAlert(t *testing.T) {
	svc := NewConsoleService(slog.Default())
	assert.NoError(t, svc.SendAlert(context.Background(), sampleAlert()))
}
