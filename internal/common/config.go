package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort    int
	MetricsPort int
	DatabaseURL string

	KafkaBrokers  []string
	WhatsAppTopic string
	SMSTopic      string
	DLQTopic      string

	EmailEndpoint string
	EmailAPIKey   string
	SenderEmail   string
	ReplyToEmail  string

	TwilioAccountSID     string
	TwilioAuthToken      string
	TwilioWhatsAppNumber string
	TwilioSMSNumber      string

	DispatchWorkers int
	SendTimeout     time.Duration

	OTLPEndpoint string
	ServiceName  string
}

func LoadConfig(service string) (*Config, error) {
	// Optional .env for local development; real environment always wins.
	_ = godotenv.Load()

	cfg := &Config{ServiceName: service}

	httpPort, err := getEnvInt("HTTP_PORT", 8080)
	if err != nil {
		return nil, err
	}
	cfg.HTTPPort = httpPort

	metricsPort, err := getEnvInt("METRICS_PORT", httpPort+1000)
	if err != nil {
		return nil, err
	}
	cfg.MetricsPort = metricsPort

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.OTLPEndpoint = os.Getenv("OTLP_ENDPOINT")

	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		cfg.KafkaBrokers = []string{"localhost:9092"}
	} else {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	cfg.WhatsAppTopic = getEnv("WHATSAPP_TOPIC", "dispatch.whatsapp")
	cfg.SMSTopic = getEnv("SMS_TOPIC", "dispatch.sms")
	cfg.DLQTopic = getEnv("DLQ_TOPIC", "dlq.dispatch")

	cfg.EmailEndpoint = getEnv("EMAIL_API_ENDPOINT", "https://ses.local")
	cfg.EmailAPIKey = os.Getenv("EMAIL_API_KEY")
	cfg.SenderEmail = getEnv("SENDER_EMAIL", "no-reply@example.com")
	cfg.ReplyToEmail = getEnv("REPLY_TO_EMAIL", cfg.SenderEmail)

	cfg.TwilioAccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	cfg.TwilioAuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	cfg.TwilioWhatsAppNumber = getEnv("TWILIO_WHATSAPP_NUMBER", "whatsapp:+14155238886")
	cfg.TwilioSMSNumber = os.Getenv("TWILIO_SMS_NUMBER")

	workers, err := getEnvInt("DISPATCH_WORKERS", 8)
	if err != nil {
		return nil, err
	}
	cfg.DispatchWorkers = workers

	timeoutSec, err := getEnvInt("SEND_TIMEOUT_SECONDS", 10)
	if err != nil {
		return nil, err
	}
	cfg.SendTimeout = time.Duration(timeoutSec) * time.Second

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		return parsed, nil
	}
	return fallback, nil
}
