package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	apperrors "github.com/edumetric/edumetric/internal/errors"
)

var (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendgridService delivers alerts through the SendGrid v3 mail API.
type SendgridService struct {
	key    string
	from   *sgmail.Email
	logger *slog.Logger
}

var _ Service = (*SendgridService)(nil)

func NewSendgridService(apiKey, fromEmail string, logger *slog.Logger) *SendgridService {
	return &SendgridService{
		key:    apiKey,
		from:   sgmail.NewEmail("EduMetric Alerts", fromEmail),
		logger: logger,
	}
}

func (svc *SendgridService) SendAlert(ctx context.Context, alert Alert) error {
	subject, html, err := render(alert)
	if err != nil {
		return apperrors.NewInternalError("rendering alert email", err)
	}

	p := sgmail.NewPersonalization()
	p.Subject = subject
	p.AddTos(sgmail.NewEmail("", alert.Recipient))

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/html", html))

	req := sendgrid.GetRequest(svc.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.API(req)
	if err != nil {
		return apperrors.NewInternalError("sending alert email", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return apperrors.NewInternalError(
			fmt.Sprintf("sending alert email: status %d", res.StatusCode), nil)
	}

	svc.logger.Info("alert email sent",
		slog.String("recipient", alert.Recipient),
		slog.String("rno", alert.RNO),
	)
	return nil
}

// ConsoleService logs alerts instead of sending them. It is the fallback
// when no SendGrid key is configured, so local setups still exercise the
// alert path end to end.
type ConsoleService struct {
	logger *slog.Logger
}

var _ Service = (*ConsoleService)(nil)

func NewConsoleService(logger *slog.Logger) *ConsoleService {
	return &ConsoleService{logger: logger}
}

func (svc *ConsoleService) SendAlert(ctx context.Context, alert Alert) error {
	subject, _, err := render(alert)
	if err != nil {
		return apperrors.NewInternalError("rendering alert email", err)
	}
	svc.logger.Info("alert email (console delivery)",
		slog.String("recipient", alert.Recipient),
		slog.String("subject", subject),
		slog.String("rno", alert.RNO),
		slog.String("performance", alert.Prediction.PerformanceLabel),
		slog.String("risk", alert.Prediction.RiskLabel),
		slog.String("dropout", alert.Prediction.DropoutLabel),
	)
	return nil
}
