// Package payments generates consultation payment links and records
// completed payments.
package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// LinkRequest describes what a payment link is for.
type LinkRequest struct {
	AppointmentID string
	PatientName   string
	Phone         string
	DoctorName    string
	Fee           int
}

// Linker produces a payment link for an appointment.
type Linker interface {
	PaymentLink(ctx context.Context, req LinkRequest) (string, error)
}

// DemoLinker builds a static pay-by-amount link, e.g.
// https://razorpay.me/pinkhealth/800.
type DemoLinker struct {
	base string
}

func NewDemoLinker(base string) *DemoLinker {
	if base == "" {
		base = "https://razorpay.me/pinkhealth"
	}
	return &DemoLinker{base: strings.TrimRight(base, "/")}
}

func (d *DemoLinker) PaymentLink(ctx context.Context, req LinkRequest) (string, error) {
	return fmt.Sprintf("%s/%d", d.base, req.Fee), nil
}

// FallbackLinker tries primary within timeout and falls back on any
// failure so a booking always carries a link.
type FallbackLinker struct {
	primary  Linker
	fallback Linker
	timeout  time.Duration
	logger   *logging.Logger
}

func NewFallbackLinker(primary, fallback Linker, timeout time.Duration, logger *logging.Logger) *FallbackLinker {
	if fallback == nil {
		fallback = NewDemoLinker("")
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackLinker{primary: primary, fallback: fallback, timeout: timeout, logger: logger}
}

func (f *FallbackLinker) PaymentLink(ctx context.Context, req LinkRequest) (string, error) {
	if f.primary != nil {
		ctx, cancel := context.WithTimeout(ctx, f.timeout)
		link, err := f.primary.PaymentLink(ctx, req)
		cancel()
		if err == nil && link != "" {
			return link, nil
		}
		f.logger.Warn("payment link provider failed, using fallback", "appointment_id", req.AppointmentID, "error", err)
	}
	return f.fallback.PaymentLink(ctx, req)
}
