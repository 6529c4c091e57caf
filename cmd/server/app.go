package main

import (
	"context"
	"errors"
	"fmt"

	"content-market/internal/api"
	"content-market/internal/config"
	"content-market/internal/database"
	"content-market/internal/gateway"
	"content-market/internal/i18n"
	"content-market/internal/services"
	"content-market/pkg/logging"
	"content-market/pkg/rabbitmq"
)

// app holds the wired services of one process.
type app struct {
	cfg       *config.Config
	store     *database.Store
	publisher rabbitmq.Publisher
	replay    *services.ReplayProtection
	bundle    *i18n.Bundle

	entitlement *services.EntitlementResolver
	coupons     *services.CouponEngine
	checkout    *services.CheckoutService
	delivery    *services.DeliveryDispatcher
	content     *services.ContentService
	fanout      *services.NotificationFanout
	accounts    *services.AccountService
	expiration  *services.ExpirationSweep
}

// newApp wires every service over the initialized database. The messaging
// gateway is only connected when withMessenger is set, so offline commands
// run without a bot token.
func newApp(withMessenger bool) (*app, error) {
	cfg := config.AppConfig
	a := &app{
		cfg:       cfg,
		store:     database.GetStore(),
		publisher: rabbitmq.NewPublisher(cfg.AMQPURL),
	}

	bundle, err := i18n.Load(cfg.LocalesDir, cfg.DefaultLanguage)
	if err != nil {
		return nil, fmt.Errorf("failed to load locales: %w", err)
	}
	a.bundle = bundle

	var cache services.SettledPaymentCache
	if client := database.GetRedis(); client != nil {
		cache = services.NewRedisService(client, 0)
	} else {
		a.replay = services.NewReplayProtection(0)
		cache = a.replay
	}

	var messenger services.Messenger = unconfiguredMessenger{}
	if withMessenger {
		if cfg.Telegram.BotToken == "" {
			return nil, errors.New("TELEGRAM_BOT_TOKEN is required")
		}
		m, err := gateway.NewTelegramMessenger(cfg.Telegram.BotToken)
		if err != nil {
			return nil, fmt.Errorf("failed to connect messaging gateway: %w", err)
		}
		messenger = m
	}

	var alerter services.AdminAlerter
	if cfg.Brevo.APIKey != "" && cfg.AdminAlertEmail != "" {
		alerter = services.NewBrevoService(cfg.Brevo.APIKey, cfg.Brevo.FromEmail, cfg.Brevo.FromName, cfg.AdminAlertEmail)
	} else {
		logging.Infof("Brevo not configured, contact-missing alerts are disabled")
	}

	deliveryGateway := gateway.NewDeliveryClient(cfg.Delivery.BaseURL, cfg.Delivery.Secret, cfg.Delivery.Timeout)

	a.entitlement = services.NewEntitlementResolver(a.store)
	a.coupons = services.NewCouponEngine(a.store, cfg.MaxActiveCoupons)
	settlement := services.NewSettlementGateway(a.store, cfg.SettlementCurrency, cache)
	a.checkout = services.NewCheckoutService(a.store, a.coupons, settlement, a.entitlement, a.publisher)
	a.delivery = services.NewDeliveryDispatcher(a.store, deliveryGateway, alerter)
	a.fanout = services.NewNotificationFanout(a.store, messenger, bundle, cfg.Notification.SendDelay)
	a.content = services.NewContentService(a.store, a.fanout, a.publisher)
	a.accounts = services.NewAccountService(a.store)
	a.expiration = services.NewExpirationSweep(a.store, a.publisher)

	return a, nil
}

func (a *app) handler() *api.Handler {
	return api.NewHandler(api.Services{
		Entitlement: a.entitlement,
		Coupons:     a.coupons,
		Checkout:    a.checkout,
		Delivery:    a.delivery,
		Content:     a.content,
		Fanout:      a.fanout,
		Accounts:    a.accounts,
		Localizer:   a.bundle,
	}, api.Options{
		OperatorAPIKey:             a.cfg.OperatorAPIKey,
		CallbackSecret:             a.cfg.PaymentCallbackSecret,
		DefaultLanguage:            a.cfg.DefaultLanguage,
		DefaultSelfDestructSeconds: a.cfg.Delivery.DefaultSelfDestructSeconds,
		MaxNotificationRetries:     a.cfg.Notification.MaxRetries,
	})
}

func (a *app) close() {
	if a.replay != nil {
		a.replay.Stop()
	}
	a.publisher.Close()
}

// unconfiguredMessenger refuses sends in processes that never drain.
type unconfiguredMessenger struct{}

func (unconfiguredMessenger) SendMessage(ctx context.Context, chatID int64, text string) error {
	return errors.New("messaging gateway not configured")
}
