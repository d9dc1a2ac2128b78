package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/wolfman30/clinic-intake/cmd/mainconfig"
	appconfig "github.com/wolfman30/clinic-intake/internal/config"
	"github.com/wolfman30/clinic-intake/internal/notify"
	"github.com/wolfman30/clinic-intake/internal/payments"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// BuildSinks returns the configured external notification sinks: staff
// SMS, clinic email and the event queue. Sinks without a destination are
// left out.
func BuildSinks(ctx context.Context, cfg *appconfig.Config, sms notify.SMSSender, logger *logging.Logger) ([]notify.Sink, error) {
	var sinks []notify.Sink
	if s := notify.NewSMSSink(sms, cfg.StaffAlertNumbers, logger); s != nil {
		sinks = append(sinks, s)
	}

	var (
		sesClient *sesv2.Client
		sqsClient *sqs.Client
	)
	if mainconfig.NeedsAWS(cfg) {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		sesClient = sesv2.NewFromConfig(awsCfg)
		sqsClient = sqs.NewFromConfig(awsCfg)
	}

	sender, err := buildEmailSender(cfg, sesClient, logger)
	if err != nil {
		return nil, err
	}
	if s := notify.NewEmailSink(sender, cfg.ClinicEmailRecipients, cfg.ClinicName); s != nil {
		sinks = append(sinks, s)
	}

	if cfg.NotificationQueueURL != "" {
		if q := notify.NewQueueSink(sqsClient, cfg.NotificationQueueURL); q != nil {
			sinks = append(sinks, q)
		}
	}
	return sinks, nil
}

func buildEmailSender(cfg *appconfig.Config, sesClient *sesv2.Client, logger *logging.Logger) (notify.EmailSender, error) {
	switch cfg.EmailProvider {
	case "", "stub":
		return notify.NewStubEmailSender(logger), nil
	case "sendgrid":
		s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if s == nil {
			return nil, fmt.Errorf("bootstrap: EMAIL_PROVIDER=sendgrid needs SENDGRID_API_KEY")
		}
		return s, nil
	case "ses":
		s := notify.NewSESSender(sesClient, notify.SESConfig{
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if s == nil {
			return nil, fmt.Errorf("bootstrap: SES client unavailable")
		}
		return s, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown email provider %q", cfg.EmailProvider)
	}
}

// BuildLinker returns Stripe Checkout behind a demo-link fallback when a
// Stripe key is set, and the demo link alone otherwise.
func BuildLinker(cfg *appconfig.Config, logger *logging.Logger) payments.Linker {
	demo := payments.NewDemoLinker("")
	stripe := payments.NewStripeLinker(payments.StripeConfig{
		SecretKey:  cfg.StripeSecretKey,
		SuccessURL: cfg.PaymentSuccessURL,
		CancelURL:  cfg.PaymentCancelURL,
	})
	if stripe == nil {
		return demo
	}
	logger.Info("stripe payment links enabled")
	return payments.NewFallbackLinker(stripe, demo, cfg.PaymentTimeout, logger)
}
