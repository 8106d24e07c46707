package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnendingLoop/BGRemover/internal/credentials"
	"github.com/UnendingLoop/BGRemover/internal/kafka"
	"github.com/UnendingLoop/BGRemover/internal/provider"
	"github.com/UnendingLoop/BGRemover/internal/provider/picsart"
	"github.com/UnendingLoop/BGRemover/internal/repository"
	"github.com/UnendingLoop/BGRemover/internal/service"
	"github.com/UnendingLoop/BGRemover/internal/storage"
	"github.com/UnendingLoop/BGRemover/internal/worker"
	"github.com/getsentry/sentry-go"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	// инициализировать конфиг/ считать энвы
	appConfig := config.New()
	appConfig.EnableEnv("")
	if err := appConfig.LoadEnvFiles("./.env"); err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}

	zlog.InitConsole()
	level := appConfig.GetString("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	if err := zlog.SetLevel(level); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// sentry опционален - без DSN просто не шлем ошибки
	hook := initSentry(appConfig.GetString("SENTRY_DSN"))
	defer sentry.Flush(2 * time.Second)

	// Listening to interruptions through context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// подключитсья к базе
	dbConn := repository.ConnectWithRetries(appConfig, 5, 10*time.Second)
	// подключиться к хранилищу
	strg := storage.NewImgStorage(appConfig, 10*time.Second)
	// создаем экземпляр репо
	repo := repository.NewPostgresTaskRepo(dbConn)

	registry := provider.NewRegistry()
	ps, err := picsart.New(credentials.NewConfigResolver(appConfig), nil)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to init picsart provider")
	}
	if err := registry.Register(ps); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to register picsart provider")
	}

	// создаем экземпляр сервиса
	var svc worker.TaskWorkerService = service.NewTaskService(appConfig, repo, NoopPublisher{}, strg, registry)

	// ждем пока кафка раздуплится
	broker := appConfig.GetString("KAFKA_BROKER")
	if err := kafka.WaitKafkaReady(ctx, broker, 3*time.Second); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Kafka is not reachable")
	}
	// подключиться к кафке как читатель
	queue := make(chan kafkago.Message)
	retryStrategy := retry.Strategy{
		Attempts: 5,
		Delay:    2 * time.Second,
		Backoff:  1.5,
	}
	topic := appConfig.GetString("KAFKA_TOPIC")
	groupID := appConfig.GetString("KAFKA_GROUPID")
	cons := wbfkafka.NewConsumer([]string{broker}, topic, groupID)

	cons.StartConsuming(ctx, queue, retryStrategy)

	// Собираем воедино все что нужно воркеру и запускаем его
	w := worker.NewWorkerInstance(strg, svc, registry, queue, cons, appConfig.GetString("RESULT_KEY"), hook)
	go w.StartWorker(ctx)
	zlog.Logger.Info().Str("topic", topic).Str("group", groupID).Msg("Worker started")

	// Waiting for interruption to stop context to start Graceful shutdown
	<-ctx.Done()

	shutdown(cons, dbConn)
	zlog.Logger.Info().Msg("Exiting worker...")
}

func initSentry(dsn string) worker.FailureHook {
	if dsn == "" {
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{Dsn: dsn}); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to init sentry, failures won't be reported")
		return nil
	}

	return func(ctx context.Context, taskID string, err error) {
		sentry.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("task_id", taskID)
			sentry.CaptureException(err)
		})
	}
}

func shutdown(cons *wbfkafka.Consumer, dbConn *dbpg.DB) {
	zlog.Logger.Info().Msg("Interrupt received!!! Starting shutdown sequence...")

	// Closing Kafka connection:
	if err := cons.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close Kafka-reader")
	}
	zlog.Logger.Info().Msg("Kafka-consumer connection closed.")

	// Closing DB connection
	if err := dbConn.Master.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close DB-conn correctly")
		return
	}
	zlog.Logger.Info().Msg("DBconn closed")
}
