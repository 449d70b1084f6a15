package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/NamiraNet/namira-pool/internal/config"
	"github.com/NamiraNet/namira-pool/internal/notify"
	"github.com/NamiraNet/namira-pool/internal/report"
)

// newReportStore connects to Redis. It returns nil when no address is configured.
func newReportStore(ctx context.Context, c config.RedisConfig, encryptionKey string, logger *zap.Logger) (*report.RedisStore, error) {
	if c.Addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("Connected to Redis successfully", zap.String("addr", c.Addr))

	return report.NewRedisStore(client, c.ReportTTL, []byte(encryptionKey))
}

// newTelegram returns nil when no bot token is configured.
func newTelegram(c config.TelegramConfig) (*notify.Telegram, error) {
	if c.BotToken == "" || c.Channel == "" {
		return nil, nil
	}

	telegramTransport := &http.Transport{}
	if proxyURL := c.ProxyURL; proxyURL != "" {
		proxy, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse proxy URL: %w", err)
		}
		telegramTransport.Proxy = http.ProxyURL(proxy)
	}

	var limiter *rate.Limiter
	if c.SendingInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(c.SendingInterval), 1)
	}

	return notify.NewTelegram(
		c.BotToken,
		c.Channel,
		c.Template,
		&http.Client{
			Timeout:   10 * time.Second,
			Transport: telegramTransport,
		},
		limiter,
	), nil
}

// publish persists and announces a finished report. Failures are logged, not fatal.
func publish(ctx context.Context, r *report.Report, store *report.RedisStore, notifier notify.Notifier, logger *zap.Logger) {
	if store != nil {
		if err := store.Save(ctx, r); err != nil {
			logger.Error("Failed to persist report", zap.Error(err))
		} else {
			logger.Info("Report persisted", zap.String("run_id", r.RunID))
		}
	}
	if notifier != nil {
		if err := notifier.Send(ctx, r); err != nil {
			logger.Error("Failed to send Telegram notification", zap.Error(err))
		}
	}
}
