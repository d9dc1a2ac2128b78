package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/clinic-intake/internal/analytics"
	"github.com/wolfman30/clinic-intake/internal/api/router"
	"github.com/wolfman30/clinic-intake/internal/appointments"
	"github.com/wolfman30/clinic-intake/internal/bookings"
	"github.com/wolfman30/clinic-intake/internal/catalog"
	appconfig "github.com/wolfman30/clinic-intake/internal/config"
	"github.com/wolfman30/clinic-intake/internal/conversation"
	"github.com/wolfman30/clinic-intake/internal/dashboard"
	"github.com/wolfman30/clinic-intake/internal/events"
	httpmiddleware "github.com/wolfman30/clinic-intake/internal/http/middleware"
	"github.com/wolfman30/clinic-intake/internal/messaging"
	"github.com/wolfman30/clinic-intake/internal/notify"
	"github.com/wolfman30/clinic-intake/internal/observability/metrics"
	"github.com/wolfman30/clinic-intake/internal/patients"
	"github.com/wolfman30/clinic-intake/internal/payments"
	"github.com/wolfman30/clinic-intake/internal/session"
	"github.com/wolfman30/clinic-intake/internal/support"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// App is the running object graph behind cmd/api.
type App struct {
	Handler   http.Handler
	Engine    *conversation.Engine
	Bookings  *bookings.Service
	Analytics *analytics.Collector
	Transport OutboundTransport
	Sessions  session.Store

	sweeper    *session.Sweeper
	metrics    *metrics.ClinicMetrics
	gaugeEvery time.Duration
	closers    []func()
	closeOnce  sync.Once
}

// Build wires every component from cfg. On error, whatever was already
// opened is closed again.
func Build(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (_ *App, err error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	a := &App{gaugeEvery: cfg.SessionSweepInterval}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	loc := cfg.Location()
	clinic := catalog.DefaultClinic(cfg.ClinicName, loc)
	cat := catalog.Default()

	sessions, closeSessions, err := BuildSessionStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeSessions)
	a.Sessions = sessions

	durable, closePatients, err := BuildPatientStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closePatients)

	escalationStore, closeEscalations, err := BuildEscalationStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeEscalations)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	clinicMetrics := metrics.NewClinicMetrics(registry)
	a.metrics = clinicMetrics
	collector := analytics.NewCollector(analytics.WithLocation(loc))
	a.Analytics = collector
	record := func(evt analytics.Event) {
		collector.Record(evt)
		clinicMetrics.Record(evt)
	}

	transport, provider := BuildTransport(cfg, logger)
	a.Transport = transport
	outbox := messaging.NewOutbox(transport, cfg.OutboxWorkers, cfg.OutboxBuffer, cfg.SendTimeout, logger)
	outbox.OnResult(func(to string, err error) {
		clinicMetrics.ObserveOutbound(err)
		if err != nil {
			record(analytics.Event{Kind: analytics.KindOutboundFailed, UserID: to, Detail: err.Error()})
		}
	})
	a.closers = append(a.closers, outbox.Close)

	feed := dashboard.NewFeedHub(cfg.CORSAllowedOrigins, logger)
	collector.Subscribe(feed.PublishActivity)

	sinks, err := BuildSinks(ctx, cfg, transport, logger)
	if err != nil {
		return nil, err
	}
	sinks = append(sinks, feed, notify.SinkFunc{
		SinkName: "analytics",
		Fn: func(ctx context.Context, evt events.AppointmentBookedV1) error {
			record(analytics.FromBooked(evt))
			return nil
		},
	})
	dispatcher := notify.NewDispatcher(cfg.SinkTimeout, logger, sinks...)
	dispatcher.OnResult(func(sink string, err error) {
		clinicMetrics.ObserveSink(sink, err)
		if err != nil {
			record(analytics.Event{Kind: analytics.KindNotificationFailed, Detail: sink})
		}
	})
	a.closers = append(a.closers, dispatcher.Close)

	escalations := support.NewEscalationService(escalationStore, transport, cfg.StaffAlertNumbers, logger)
	escalations.OnEscalation(func(evt events.StaffEscalationV1) {
		record(analytics.FromEscalation(evt))
	})
	a.closers = append(a.closers, escalations.Wait)

	history := patients.NewMemoryRepository()
	store := appointments.NewMemoryStore()
	opts := []bookings.Option{
		bookings.WithHistory(history),
		bookings.WithPublisher(dispatcher),
		bookings.WithLinker(BuildLinker(cfg, logger)),
	}
	if durable != nil {
		opts = append(opts, bookings.WithDurable(durable))
	}
	booker := bookings.NewService(store, logger, opts...)
	booker.OnChange(func(evt events.AppointmentChangedV1) {
		if e, ok := analytics.FromChange(evt); ok {
			record(e)
		}
	})
	a.Bookings = booker
	a.closers = append(a.closers, booker.Wait, feed.Close)

	lookupRepo := patients.Repository(history)
	if durable != nil {
		lookupRepo = durable
	}
	resolver := patients.NewResolver(lookupRepo, store, loc, logger).WithTimeout(cfg.LookupTimeout)

	view := appointments.NewView(reconciliationSources(store, sessions, history, durable), loc, logger,
		appointments.WithPlaceholder(cfg.DashboardPlaceholder))

	locker := session.NewLocker()
	engine := conversation.NewEngine(conversation.Deps{
		Sessions:     sessions,
		Locker:       locker,
		Catalog:      cat,
		Clinic:       clinic,
		Bookings:     booker,
		Appointments: store,
		Patients:     resolver,
		Sender:       outbox,
		Escalations:  escalations,
		Recorders:    []conversation.Recorder{collector, clinicMetrics},
		Latency:      clinicMetrics,
		Logger:       logger,
	})
	a.Engine = engine

	a.sweeper = session.NewSweeper(sessions, locker, cfg.SessionIdleTimeout, cfg.SessionSweepInterval, logger,
		session.WithExpireHook(func(userID string) {
			record(analytics.Event{Kind: analytics.KindSessionExpired, UserID: userID})
		}),
	)

	dash := dashboard.NewService(dashboard.Deps{
		View:        view,
		Patients:    lookupRepo,
		History:     resolver,
		Analytics:   collector,
		Catalog:     cat,
		Clinic:      clinic,
		Sessions:    sessions,
		Escalations: escalations,
		Gatherer:    registry,
		Sinks:       dispatcher.Sinks,
		Logger:      logger,
	})

	var limiter *httpmiddleware.RateLimiter
	if cfg.InboundRateLimit > 0 {
		limiter = httpmiddleware.NewRateLimiter(cfg.InboundRateLimit, cfg.InboundRateBurst)
	}
	a.Handler = router.New(&router.Config{
		Logger:             logger,
		MessagingHandler:   messaging.NewHandler(cfg.TwilioWebhookSecret, engine, outbox, logger),
		DashboardHandler:   dashboard.NewHandler(dash, booker, feed, logger),
		PaymentCallback:    payments.NewCallbackHandler(booker, cfg.PaymentCallbackSecret, logger),
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AdminJWTSecret:     cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		InboundLimiter:     limiter,
	})

	logger.Info("application wired",
		"transport", provider,
		"session_backend", cfg.SessionBackend,
		"patient_store", cfg.PatientStore,
		"sinks", dispatcher.Sinks(),
	)
	return a, nil
}

// reconciliationSources lists the view's sources in precedence order:
// the appointment store, then live sessions, then patient history. durable
// may be nil.
func reconciliationSources(store appointments.Source, sessions session.Store, history, durable patients.Repository) []appointments.NamedSource {
	sources := []appointments.NamedSource{
		{Name: "store", Source: store},
		{Name: "sessions", Source: session.NewInFlightSource(sessions)},
		{Name: "history", Source: patients.NewHistorySource(history)},
	}
	if durable != nil {
		sources = append(sources, appointments.NamedSource{Name: "database", Source: patients.NewHistorySource(durable)})
	}
	return sources
}

// Run drives the idle-session sweeper and the active-session gauge until
// ctx is done.
func (a *App) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.sweeper.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		a.trackActiveSessions(ctx)
	}()
	wg.Wait()
}

func (a *App) trackActiveSessions(ctx context.Context) {
	every := a.gaugeEvery
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		if list, err := a.Sessions.List(ctx); err == nil {
			a.metrics.SetActiveSessions(len(list))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Close drains background work and releases stores, newest first.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			if a.closers[i] != nil {
				a.closers[i]()
			}
		}
	})
}
