// Package app assembles the database, transports and services shared by the
// HTTP server and the admin CLI.
package app

import (
	"context"
	"database/sql"
	"fmt"

	log "github.com/sirupsen/logrus"

	"namocoins/internal/config"
	"namocoins/internal/database"
	"namocoins/internal/mailer"
	"namocoins/internal/mq"
	"namocoins/internal/service"
)

type App struct {
	DB    *sql.DB
	Store *database.Store

	Auth    *service.AuthService
	Orders  *service.OrderService
	Balance *service.BalanceService
	Rates   *service.RateService
	Status  *service.StatusService

	publisher *mq.Publisher
}

// New connects to Postgres, applies the schema and wires every service.
// The event publisher is optional; a broker that cannot be reached at
// startup disables events instead of failing.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.NewDB(ctx, cfg.DatabaseURI)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := database.InitSchema(ctx, db); err != nil {
		database.CloseDB(db)
		return nil, fmt.Errorf("init schema: %w", err)
	}

	smtp, err := mailer.New(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		FromName: cfg.SMTP.FromName,
		From:     cfg.SMTP.Sender(),
	})
	if err != nil {
		database.CloseDB(db)
		return nil, err
	}

	a := &App{DB: db, Store: database.NewStore(db)}

	var events service.EventPublisher
	if cfg.AMQPURL != "" {
		p, err := mq.NewPublisher(cfg.AMQPURL)
		if err != nil {
			log.WithError(err).Warn("order events disabled")
		} else {
			a.publisher = p
			events = p
		}
	}

	if !cfg.RCON.Enabled() {
		log.Warn("RCON_HOST/RCON_PASSWORD not set; paid orders will not be granted in game")
	}

	playerPoints := service.NewPlayerPointsClient(service.RCONConfig{
		Host:            cfg.RCON.Host,
		Port:            cfg.RCON.Port,
		Password:        cfg.RCON.Password,
		CommandTemplate: cfg.RCON.CommandTemplate,
		Timeout:         cfg.RCON.Timeout,
	})

	a.Auth = service.NewAuthService(a.Store, cfg.JWTSecret, service.AdminCredentials{
		Email:        cfg.AdminEmail,
		PasswordHash: cfg.AdminPasswordHash,
	})
	a.Orders = service.NewOrderService(a.Store, service.UPIConfig{
		ID:        cfg.UPIID,
		PayeeName: cfg.UPIPayeeName,
	})
	a.Balance = service.NewBalanceService(a.Store)
	a.Rates = service.NewRateService(a.Store, service.DefaultPricing)
	a.Status = service.NewStatusService(a.Store, playerPoints, service.NewInvoiceNotifier(smtp), events)

	return a, nil
}

func (a *App) Close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	database.CloseDB(a.DB)
}
