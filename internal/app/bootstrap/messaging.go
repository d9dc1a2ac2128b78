package bootstrap

import (
	"context"
	"strings"

	appconfig "github.com/wolfman30/clinic-intake/internal/config"
	"github.com/wolfman30/clinic-intake/internal/messaging"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// OutboundTransport sends patient replies and staff alerts.
type OutboundTransport interface {
	messaging.Transport
	SendSMS(ctx context.Context, to, body string) error
}

// BuildTransport picks Twilio when credentials are complete and the log
// transport otherwise. The second result names the provider.
func BuildTransport(cfg *appconfig.Config, logger *logging.Logger) (OutboundTransport, string) {
	if cfg != nil &&
		strings.TrimSpace(cfg.TwilioAccountSID) != "" &&
		strings.TrimSpace(cfg.TwilioAuthToken) != "" &&
		strings.TrimSpace(cfg.TwilioFromNumber) != "" {
		return messaging.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger), "twilio"
	}
	logger.Warn("twilio credentials incomplete; replies are logged, not sent")
	return messaging.NewLogTransport(0, logger), "log"
}
