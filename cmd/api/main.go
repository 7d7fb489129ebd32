package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sitecrew/chat-api/internal/auth"
	"github.com/sitecrew/chat-api/internal/chat"
	"github.com/sitecrew/chat-api/internal/data"
	"github.com/sitecrew/chat-api/internal/db"
	"github.com/sitecrew/chat-api/internal/middleware"
)

func main() {
	log := logrus.NewEntry(logrus.StandardLogger())
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logrus.SetLevel(lvl)
	}

	// Read configuration from environment
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		log.Fatal("MONGODB_URI must be set")
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	jwtKeysEnv := os.Getenv("JWT_KEYS") // optional: format kid:secret,kid2:secret2
	jwtActiveKid := os.Getenv("JWT_ACTIVE_KID")
	if jwtKeysEnv == "" && jwtSecret == "" {
		log.Fatal("either JWT_SECRET or JWT_KEYS must be set")
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	ctx := context.Background()

	dbClient, err := db.New(ctx, mongoURI)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to DB")
	}
	defer func() {
		_ = dbClient.Close(context.Background())
	}()

	if err := dbClient.CreateIndexes(ctx); err != nil {
		log.WithError(err).Fatal("failed to create indexes")
	}

	// Token verification. JWT_KEYS enables key rotation; JWT_SECRET is the
	// single-key fallback.
	var jwtMgr *auth.JWTManager
	if jwtKeysEnv != "" {
		keyMap := map[string]string{}
		for _, p := range strings.Split(jwtKeysEnv, ",") {
			if p == "" {
				continue
			}
			parts := strings.SplitN(p, ":", 2)
			if len(parts) != 2 {
				log.Fatalf("invalid JWT_KEYS entry: %s", p)
			}
			keyMap[parts[0]] = parts[1]
		}
		jwtMgr = auth.NewJWTManagerFromKeys(keyMap, jwtActiveKid, 24*time.Hour)
	} else {
		jwtMgr = auth.NewJWTManager(jwtSecret, 24*time.Hour)
	}

	// RATE_LIMIT_RPM controls sends and typing signals per caller per minute.
	rateRPM := 60
	if v := os.Getenv("RATE_LIMIT_RPM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			rateRPM = n
		}
	}
	limiterStore := middleware.NewLimiterStore(rateRPM, 5, 1*time.Minute)
	defer limiterStore.Stop()

	var notifier chat.Notifier
	if webhookURL := os.Getenv("NOTIFY_WEBHOOK_URL"); webhookURL != "" {
		notifier = chat.NewWebhookNotifier(webhookURL, 10*time.Second)
	} else {
		notifier = &chat.LogNotifier{Log: log}
	}

	hub := NewSignalHub(log)

	svc := chat.NewService(chat.Deps{
		Messages:  data.NewMessagesStore(dbClient.MessagesCollection()),
		Directory: data.NewUsersStore(dbClient.UsersCollection()),
		Typing:    data.NewTypingStore(dbClient.TypingCollection()),
		Cursors:   data.NewReadCursorStore(dbClient.ReadCursorsCollection()),
		Closures:  data.NewClosureStore(dbClient.ClosuresCollection()),
		Notifier:  notifier,
		Signals:   hub,
		Log:       log,
	})

	srv := newServer(svc, hub, log)
	app := newApp(srv, jwtMgr, limiterStore)

	go func() {
		log.WithField("port", port).Info("chat API listening")
		if err := app.Listen(":" + port); err != nil {
			log.WithError(err).Fatal("server exit")
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down chat API")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.WithError(err).Warn("shutdown did not complete cleanly")
	}
}
