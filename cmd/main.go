package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	virtualcard "virtualcard_back"
	"virtualcard_back/pkg/cache"
	"virtualcard_back/pkg/config"
	"virtualcard_back/pkg/handler"
	"virtualcard_back/pkg/provider"
	"virtualcard_back/pkg/repository"
	"virtualcard_back/pkg/service"
	"virtualcard_back/pkg/tronclient"
	"virtualcard_back/pkg/utils"
)

func main() {
	logrus.SetFormatter(new(logrus.JSONFormatter))
	log := logrus.StandardLogger()
	log.Infoln("Запуск сервера")
	if err := godotenv.Load(); err != nil {
		log.Infof("Файл .env не загружен: %s", err)
	}

	cfg, err := config.Load("configs", "config")
	if err != nil {
		log.Fatalf("Ошибка при инициализации конфига: %s", err)
	}
	log.Infoln("Конфиг инициализирован")

	db, err := repository.NewPostgresDB(repository.Config{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		Username: cfg.DB.Username,
		Password: cfg.DB.Password,
		DBName:   cfg.DB.DBName,
		SSLMode:  cfg.DB.SSLMode,
	})
	if err != nil {
		log.Fatalf("Ошибка при инициализации базы данных: %s", err)
	}
	log.Info("База данных подключена")

	if cfg.DB.Migrate {
		if err := repository.RunMigrations(db, "schema"); err != nil {
			log.Fatalf("Ошибка миграций: %s", err)
		}
		log.Info("Миграции применены")
	}

	indexer := tronclient.NewTronHTTPClient(cfg.IndexerBaseURL, cfg.IndexerAPIKey, cfg.IndexerTimeout)
	verifier := tronclient.NewVerifier(indexer, nil, tronclient.VerifierConfig{
		TokenContract: cfg.USDTContract,
		Decimals:      cfg.TokenDecimals,
		Timeout:       cfg.IndexerTimeout,
	}, log.WithField("component", "verifier"))

	cardProvider := provider.NewClient(provider.Config{
		BaseURL: cfg.ProviderBaseURL,
		APIKey:  cfg.ProviderAPIKey,
		Timeout: cfg.ProviderTimeout,
	}, log.WithField("component", "provider"))

	services := service.NewService(service.Deps{
		Repos:    repository.NewRepository(db),
		Verifier: verifier,
		Provider: cardProvider,
		Cache:    cache.NewBalanceCache(cache.DefaultTTL, log),
		Notifier: utils.NewNotifier(utils.NewSender(cfg.Mail), cfg.Mail.BaseURL, log.WithField("component", "mail")),
		Config:   cfg,
		Log:      log,
	})
	if err := services.Reconcile.Start(); err != nil {
		log.Fatalf("Ошибка запуска сверки: %s", err)
	}

	handlers := handler.NewHandler(services, cfg.CORSOrigins)

	srv := new(virtualcard.Server)
	go func() {
		if err := srv.Run(cfg.Port, handlers.InitRoute()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Ошибка при запуске сервера: %s", err)
		}
	}()
	log.Infof("Сервер слушает порт %s", cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Остановка сервера")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Ошибка при остановке сервера: %s", err)
	}
	services.Reconcile.Stop()
	if err := db.Close(); err != nil {
		log.Errorf("Ошибка при закрытии базы данных: %s", err)
	}
}
