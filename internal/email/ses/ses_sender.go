package ses

import (
	"context"
	"fmt"
	"html"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"spedflow/internal/port"
)

type sesSender struct {
	client      *sesv2.Client
	fromAddress string
	fromName    string
	frontendURL string
}

// NewSESSender creates a new SES-backed EmailSender.
func NewSESSender(region, fromAddress, fromName, frontendURL string) (port.EmailSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SES: %w", err)
	}
	client := sesv2.NewFromConfig(cfg)
	return &sesSender{
		client:      client,
		fromAddress: fromAddress,
		fromName:    fromName,
		frontendURL: frontendURL,
	}, nil
}

func (s *sesSender) SendPendingRatesNotification(ctx context.Context, to []string, notice port.PendingRatesNotice) error {
	if len(to) == 0 {
		return nil
	}

	subject := PendingSubject(notice)
	htmlBody := buildPendingHTML(notice, s.pendingURL())
	textBody := BuildPendingText(notice, s.pendingURL())

	from := fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)

	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &from,
		Destination: &types.Destination{
			ToAddresses: to,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &subject},
				Body: &types.Body{
					Html: &types.Content{Data: &htmlBody},
					Text: &types.Content{Data: &textBody},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SES SendEmail: %w", err)
	}
	return nil
}

func (s *sesSender) pendingURL() string {
	if s.frontendURL == "" {
		return ""
	}
	return strings.TrimRight(s.frontendURL, "/") + "/rates/pending"
}

// PendingSubject is the subject line of a pending-rate notice.
func PendingSubject(n port.PendingRatesNotice) string {
	return fmt.Sprintf("[SPEDflow] %d produto(s) aguardando alíquota - %s", n.Pending, strings.Join(n.Periods, ", "))
}

// BuildPendingText renders the plain-text body of a pending-rate notice.
func BuildPendingText(n port.PendingRatesNotice, link string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A apuração da empresa %s está parada aguardando alíquotas.\n\n", n.CompanyID)
	fmt.Fprintf(&b, "Períodos: %s\nProdutos pendentes: %d\n", strings.Join(n.Periods, ", "), n.Pending)
	if len(n.Sample) > 0 {
		b.WriteString("\nExemplos:\n")
		for _, p := range n.Sample {
			fmt.Fprintf(&b, "  - %s\n", p)
		}
	}
	if link != "" {
		fmt.Fprintf(&b, "\nPreencha as alíquotas em: %s\n", link)
	}
	return b.String()
}

func buildPendingHTML(n port.PendingRatesNotice, link string) string {
	var items strings.Builder
	for _, p := range n.Sample {
		fmt.Fprintf(&items, "    <li>%s</li>\n", html.EscapeString(p))
	}
	action := ""
	if link != "" {
		action = fmt.Sprintf(`  <p style="text-align: center; margin: 30px 0;">
    <a href="%s" style="background-color: #4F46E5; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">Preencher alíquotas</a>
  </p>
`, html.EscapeString(link))
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333;">Alíquotas pendentes</h2>
  <p>A apuração da empresa <b>%s</b> está parada aguardando alíquotas.</p>
  <p>Períodos: %s<br>Produtos pendentes: %d</p>
  <ul>
%s  </ul>
%s  <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
  <p style="color: #999; font-size: 12px;">SPEDflow</p>
</body>
</html>`, n.CompanyID, html.EscapeString(strings.Join(n.Periods, ", ")), n.Pending, items.String(), action)
}
