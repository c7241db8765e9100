package app

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/templui/authapi/internal/config"
	"github.com/templui/authapi/internal/db"
	"github.com/templui/authapi/internal/repository"
	"github.com/templui/authapi/internal/service"
	"github.com/templui/authapi/internal/storage"
)

type App struct {
	Cfg            *config.Config
	DB             *sqlx.DB
	Storage        storage.Storage
	TokenService   *service.TokenService
	EmailService   *service.EmailService
	AvatarService  *service.AvatarService
	AccountService *service.AccountService
}

func New(cfg *config.Config) (*App, error) {
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Repositories
	userRepository := repository.NewUserRepository(database)

	// Storage
	fileStorage, err := storage.New(cfg)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Services
	tokenService := service.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTExpiry)
	emailService := service.NewEmailService(service.EmailConfig{
		AppName:      cfg.AppName,
		From:         cfg.EmailFrom,
		ResetExpiry:  cfg.TokenPasswordResetExpiry,
		SMTPHost:     cfg.SMTPHost,
		SMTPPort:     cfg.SMTPPort,
		SMTPUser:     cfg.SMTPUser,
		SMTPPass:     cfg.SMTPPass,
		SMTPTimeout:  cfg.SMTPTimeout,
		ResendAPIKey: cfg.ResendAPIKey,
	})
	avatarService := service.NewAvatarService(fileStorage)
	accountService := service.NewAccountService(
		userRepository,
		service.NewBcryptHasher(cfg.BcryptCost),
		tokenService,
		avatarService,
		emailService,
		cfg.ResetURLBase,
		cfg.TokenPasswordResetExpiry,
	)

	return &App{
		Cfg:            cfg,
		DB:             database,
		Storage:        fileStorage,
		TokenService:   tokenService,
		EmailService:   emailService,
		AvatarService:  avatarService,
		AccountService: accountService,
	}, nil
}

func (a *App) Close() error {
	return db.Close(a.DB)
}
