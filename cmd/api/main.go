// Package main (in api-subfolder) provides launch of the whole application except worker
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnendingLoop/BGRemover/internal/credentials"
	"github.com/UnendingLoop/BGRemover/internal/kafka"
	"github.com/UnendingLoop/BGRemover/internal/mwlogger"
	"github.com/UnendingLoop/BGRemover/internal/provider"
	"github.com/UnendingLoop/BGRemover/internal/provider/picsart"
	"github.com/UnendingLoop/BGRemover/internal/repository"
	"github.com/UnendingLoop/BGRemover/internal/service"
	"github.com/UnendingLoop/BGRemover/internal/storage"
	"github.com/UnendingLoop/BGRemover/internal/transport"
	"github.com/robfig/cron/v3"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/ginext"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/zlog"
)

const defaultOrphanSchedule = "@every 1m"

func main() {
	// инициализировать конфиг/ считать энвы
	appConfig := config.New()
	appConfig.EnableEnv("")
	if err := appConfig.LoadEnvFiles("./.env"); err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}

	// стартуем логгер
	zlog.InitConsole()
	if err := zlog.SetLevel(logLevel(appConfig)); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	// готовим заранее слушатель прерываний - контекст для всего приложения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// подключитсья к базе
	dbConn := repository.ConnectWithRetries(appConfig, 5, 10*time.Second)
	// накатываем миграцию
	repository.MigrateWithRetries(dbConn.Master, "./migrations", 10, 15*time.Second)

	// подключиться к хранилищу
	strg := storage.NewImgStorage(appConfig, 10*time.Second)
	// создаем экземпляр репо
	repo := repository.NewPostgresTaskRepo(dbConn)

	// ждем пока кафка раздуплится
	broker := appConfig.GetString("KAFKA_BROKER")
	if err := kafka.WaitKafkaReady(ctx, broker, 3*time.Second); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Kafka is not reachable")
	}
	topic := appConfig.GetString("KAFKA_TOPIC")
	if err := kafka.InitKafkaTopics(ctx, broker, 10*time.Second, topic); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to init kafka topics")
	}
	// подключиться к кафке как продюсер
	pub := wbfkafka.NewProducer([]string{broker}, topic)

	// реестр провайдеров
	registry, err := newRegistry(appConfig)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to register providers")
	}

	// создаем экземпляр сервиса
	var svc APIService = service.NewTaskService(appConfig, repo, pub, strg, registry)
	// cоздаем экземпляр хендлера HTTP
	handlers := transport.NewTaskHandler(svc)
	// сетапим сервер
	mode := appConfig.GetString("GIN_MODE")
	engine := ginext.New(mode)

	engine.GET("/ping", handlers.SimplePinger)
	engine.POST("/removebg", handlers.RemoveNow)     // синхронное удаление фона
	engine.POST("/images/upload", handlers.Create)   // создание задачи
	engine.GET("/images/:id", handlers.LoadResult)   // загрузка результата
	engine.GET("/images/:id/info", handlers.GetInfo) // статус задачи
	engine.GET("/images", handlers.GetAllTasks)      // список задач с пагинацией и сортировкой
	engine.DELETE("/images/:id", handlers.Delete)    // удаление

	srv := &http.Server{
		Addr:    ":" + appConfig.GetString("APP_PORT"),
		Handler: mwlogger.NewMWLogger(engine),
	}

	// Server launch
	go func() {
		zlog.Logger.Info().Str("addr", srv.Addr).Strs("providers", registry.BackgroundRemovers()).Msg("Server running")
		err := srv.ListenAndServe()
		if err != nil {
			switch {
			case errors.Is(err, http.ErrServerClosed):
				zlog.Logger.Info().Msg("Server gracefully stopping...")
			default:
				zlog.Logger.Error().Err(err).Msg("Server stopped")
				stop()
			}
		}
	}()

	// по расписанию возвращаем в очередь подвисшие задачи
	scheduler, err := startOrphanRevival(ctx, appConfig, svc)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to schedule orphan revival")
	}

	// ждем отмены контекста для запуска грейсфул закрытия соединений бд и кафки
	<-ctx.Done()

	shutdown(srv, scheduler, pub, dbConn)
	zlog.Logger.Info().Msg("Exiting api...")
}

func logLevel(cfg *config.Config) string {
	if lvl := cfg.GetString("LOG_LEVEL"); lvl != "" {
		return lvl
	}
	return "info"
}

func newRegistry(cfg *config.Config) (*provider.Registry, error) {
	registry := provider.NewRegistry()

	ps, err := picsart.New(credentials.NewConfigResolver(cfg), nil)
	if err != nil {
		return nil, err
	}
	if err := registry.Register(ps); err != nil {
		return nil, err
	}

	return registry, nil
}

func startOrphanRevival(ctx context.Context, cfg *config.Config, svc APIService) (*cron.Cron, error) {
	schedule := cfg.GetString("ORPHAN_SCHEDULE")
	if schedule == "" {
		schedule = defaultOrphanSchedule
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		defer func() {
			if r := recover(); r != nil {
				zlog.Logger.Error().Interface("panic", r).Msg("Orphan revival crashed")
			}
		}()
		svc.ReviveOrphans(ctx, 20)
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	return c, nil
}

func shutdown(srv *http.Server, scheduler *cron.Cron, pub *wbfkafka.Producer, dbConn *dbpg.DB) {
	zlog.Logger.Info().Msg("Interrupt received!!! Starting shutdown sequence...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to shutdown HTTP-server")
	}

	// дожидаемся текущего прогона по расписанию
	<-scheduler.Stop().Done()

	// Closing Kafka connection:
	if err := pub.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close Kafka-writer")
	}
	zlog.Logger.Info().Msg("Kafka-producer connection closed.")

	// Closing DB connection
	if err := dbConn.Master.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close DB-conn correctly")
		return
	}
	zlog.Logger.Info().Msg("DBconn closed")
}
