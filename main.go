package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"ocf/verifybot/app"
	"ocf/verifybot/app/bot"
	"ocf/verifybot/aws"
	"ocf/verifybot/config"
	"ocf/verifybot/db"
	"ocf/verifybot/internal"
	"ocf/verifybot/internal/platform"
	"ocf/verifybot/internal/service"
	"ocf/verifybot/internal/store"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	gray  = "\x1b[90m"
	reset = "\x1b[0m"
)

func main() {
	gin.SetMode(gin.ReleaseMode)
	makeLogger("info")

	err := config.Setup()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	makeLogger(viper.GetString("app.log_level"))

	if err := run(); err != nil {
		zap.L().Fatal("Server stopped", zap.Error(err))
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.New()
	if err != nil {
		return fmt.Errorf("failed to initialize database, %w", err)
	}

	tokens := store.NewTokenStore(gdb, viper.GetDuration("database.timeout"))

	discord, err := platform.NewDiscord(viper.GetString("discord.token"))
	if err != nil {
		return err
	}

	notifiers, err := makeNotifiers(ctx, discord)
	if err != nil {
		return err
	}

	queue := service.NewNotifyQueue(
		viper.GetInt("notify.workers"),
		viper.GetInt("notify.queue_size"),
		viper.GetDuration("notify.timeout"),
		notifiers...,
	)
	queue.StartWorkerPool()
	defer queue.Close()

	platformTimeout := viper.GetDuration("platform.timeout")

	issuer := service.NewIssuer(tokens, discord, service.IssuerConfig{
		BaseURL:        viper.GetString("host.base_url"),
		RealmID:        viper.GetString("discord.guild_id"),
		RoleID:         viper.GetString("discord.role_id"),
		MessageID:      viper.GetString("discord.message_id"),
		ReactionEmoji:  viper.GetString("discord.reaction_emoji"),
		WelcomeMessage: viper.GetString("discord.welcome_message"),
		Timeout:        platformTimeout,
	})

	verifier := service.NewVerifier(tokens, discord, queue, service.VerifierConfig{
		RoleID:  viper.GetString("discord.role_id"),
		Timeout: platformTimeout,
	})

	d := &internal.Deps{
		Store:            tokens,
		Verifier:         verifier,
		Notify:           queue,
		ServiceName:      viper.GetString("app.service_name"),
		TurnstileSiteKey: viper.GetString("cloudflare.turnstile.site_key"),
	}

	// The gateway is opened exactly once, before anything can be served
	bot.Register(discord.S, issuer)
	if err := discord.S.Open(); err != nil {
		return fmt.Errorf("failed to connect to discord, %w", err)
	}
	defer discord.S.Close()

	service.StaleTokenReport(ctx,
		viper.GetDuration("cleanup.report_interval"),
		viper.GetDuration("cleanup.stale_after"),
		tokens)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", viper.GetInt("host.port")),
		Handler:           app.NewRouter(ctx, d),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("Server starting", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		zap.L().Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func makeNotifiers(ctx context.Context, discord *platform.Discord) ([]service.Notifier, error) {
	serviceName := viper.GetString("app.service_name")
	notifiers := []service.Notifier{}

	if channelID := viper.GetString("discord.channel_id"); channelID != "" {
		notifiers = append(notifiers, service.NewChannelNotifier(discord, channelID, serviceName))
	}

	if viper.GetBool("audit.mail.enabled") {
		notifiers = append(notifiers, service.NewMailNotifier(
			viper.GetString("audit.mail.host"),
			viper.GetInt("audit.mail.port"),
			viper.GetString("audit.mail.username"),
			viper.GetString("audit.mail.password"),
			viper.GetString("audit.mail.from"),
			viper.GetString("audit.mail.to"),
			serviceName,
		))
	}

	if viper.GetBool("audit.archive.enabled") {
		s3, err := aws.NewS3(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 client, %w", err)
		}

		notifiers = append(notifiers, service.NewArchiveNotifier(s3.C, s3.Bucket, viper.GetString("audit.archive.prefix")))
	}

	return notifiers, nil
}

func makeLogger(level string) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + t.Format("15:04:05.000") + reset)
	}
	cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + ec.TrimmedPath() + reset)
	}

	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}

	cfg.DisableStacktrace = true

	log, _ := cfg.Build()
	zap.ReplaceGlobals(log)
}
