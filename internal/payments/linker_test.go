package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-intake/pkg/logging"
)

func TestDemoLinker(t *testing.T) {
	link, err := NewDemoLinker("").PaymentLink(context.Background(), LinkRequest{Fee: 800})
	require.NoError(t, err)
	assert.Equal(t, "https://razorpay.me/pinkhealth/800", link)

	link, _ = NewDemoLinker("https://pay.example/clinic/").PaymentLink(context.Background(), LinkRequest{Fee: 450})
	assert.Equal(t, "https://pay.example/clinic/450", link)
}

type linkerFunc func(ctx context.Context, req LinkRequest) (string, error)

func (f linkerFunc) PaymentLink(ctx context.Context, req LinkRequest) (string, error) {
	return f(ctx, req)
}

func TestFallbackLinker(t *testing.T) {
	ok := linkerFunc(func(ctx context.Context, req LinkRequest) (string, error) {
		return "https://checkout.stripe.com/c/pay/cs_1", nil
	})
	failing := linkerFunc(func(ctx context.Context, req LinkRequest) (string, error) {
		return "", errors.New("stripe down")
	})
	slow := linkerFunc(func(ctx context.Context, req LinkRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	req := LinkRequest{AppointmentID: "APT-1", Fee: 500}

	link, err := NewFallbackLinker(ok, nil, time.Second, logging.Discard()).PaymentLink(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_1", link)

	link, err = NewFallbackLinker(failing, nil, time.Second, logging.Discard()).PaymentLink(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "https://razorpay.me/pinkhealth/500", link)

	start := time.Now()
	link, err = NewFallbackLinker(slow, nil, 20*time.Millisecond, logging.Discard()).PaymentLink(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "https://razorpay.me/pinkhealth/500", link)
	assert.Less(t, time.Since(start), time.Second)

	link, err = NewFallbackLinker(nil, nil, 0, nil).PaymentLink(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "https://razorpay.me/pinkhealth/500", link)
}
