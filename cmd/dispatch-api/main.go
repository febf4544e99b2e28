package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"

	"github.com/example/campaign-dispatch/internal/campaign"
	"github.com/example/campaign-dispatch/internal/channel"
	"github.com/example/campaign-dispatch/internal/common"
	"github.com/example/campaign-dispatch/internal/dispatch"
	"github.com/example/campaign-dispatch/internal/message"
	"github.com/example/campaign-dispatch/internal/provider"
	"github.com/example/campaign-dispatch/internal/report"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := common.LoadConfig("dispatch-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := common.NewLogger(cfg.ServiceName)
	shutdown, err := common.SetupOTel(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise telemetry")
	}
	defer common.ShutdownTelemetry(context.Background(), shutdown)

	metricsSrv := common.StartMetricsServer(cfg.MetricsPort)
	defer metricsSrv.Shutdown(context.Background())

	if cfg.DatabaseURL == "" {
		logger.Fatal().Msg("DATABASE_URL must be provided")
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	whatsappWriter := &kafka.Writer{
		Addr:     kafka.TCP(cfg.KafkaBrokers...),
		Topic:    cfg.WhatsAppTopic,
		Balancer: &kafka.Hash{},
	}
	defer whatsappWriter.Close()

	smsWriter := &kafka.Writer{
		Addr:     kafka.TCP(cfg.KafkaBrokers...),
		Topic:    cfg.SMSTopic,
		Balancer: &kafka.Hash{},
	}
	defer smsWriter.Close()

	emailClient := &provider.EmailClient{
		Endpoint: cfg.EmailEndpoint,
		APIKey:   cfg.EmailAPIKey,
		Sender:   cfg.SenderEmail,
		ReplyTo:  cfg.ReplyToEmail,
		Client:   &http.Client{Timeout: cfg.SendTimeout},
	}
	twilioClient := &provider.TwilioClient{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		Client:     &http.Client{Timeout: cfg.SendTimeout},
	}

	dispatcher := &dispatch.Dispatcher{
		Campaigns: campaign.NewPostgresStore(pool),
		Customers: campaign.NewPostgresCustomerStore(pool),
		Ledger:    campaign.NewPostgresDeliveryStore(pool),
		Adapters: map[campaign.Channel]channel.Adapter{
			campaign.ChannelEmail:    &channel.EmailAdapter{Client: emailClient},
			campaign.ChannelWhatsApp: &channel.QueueAdapter{Channel: campaign.ChannelWhatsApp, Writer: whatsappWriter},
			campaign.ChannelSMS:      &channel.QueueAdapter{Channel: campaign.ChannelSMS, Writer: smsWriter},
		},
		Workers: cfg.DispatchWorkers,
		Logger:  logger,
	}

	messageHandler := message.NewHandler(emailClient, twilioClient, cfg.TwilioWhatsAppNumber, cfg.TwilioSMSNumber, logger)
	reportHandler := &report.Handler{
		Aggregator: &report.Aggregator{Store: report.NewPostgresStore(pool)},
		Logger:     logger,
	}

	r := chi.NewRouter()
	dispatch.NewHandler(dispatcher, logger).Routes(r)
	messageHandler.Routes(r)
	reportHandler.Routes(r)

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		logger.Info().Int("port", cfg.HTTPPort).Msg("dispatch api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
