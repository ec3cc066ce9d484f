package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Akshita3104/SentinelAi-sub000/internal/capture"
	"github.com/Akshita3104/SentinelAi-sub000/internal/config"
	"github.com/Akshita3104/SentinelAi-sub000/internal/detect"
	"github.com/Akshita3104/SentinelAi-sub000/internal/fabric"
	"github.com/Akshita3104/SentinelAi-sub000/internal/ml"
	"github.com/Akshita3104/SentinelAi-sub000/internal/notification"
	"github.com/Akshita3104/SentinelAi-sub000/internal/reputation"
	"github.com/Akshita3104/SentinelAi-sub000/internal/server"
	"github.com/Akshita3104/SentinelAi-sub000/pkg/pcap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	replayPath := flag.String("replay", "", "replay a pcap file instead of waiting for a start-capture request")
	replayTarget := flag.String("replay-target", "", "target IP to monitor during replay")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		log.SetLevel(level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Event fabric, optionally mirrored to NATS.
	fab := fabric.New(cfg.Fabric.SubscriberQueueCap, log.WithField("component", "fabric"))
	defer fab.Close()
	if cfg.NATS.URL != "" {
		mirror, err := fabric.NewMirror(cfg.NATS.URL, cfg.NATS.SubjectPrefix, log.WithField("component", "nats"))
		if err != nil {
			// The mirror is an optional integration; local delivery works
			// without it.
			log.WithError(err).Warn("event mirror disabled: NATS unreachable")
		} else {
			defer mirror.Close()
			fab.SetMirror(mirror)
			log.WithField("url", cfg.NATS.URL).Info("mirroring events to NATS")
		}
	}
	go fab.RunHeartbeat(ctx, cfg.Fabric.HeartbeatInterval())

	// Capture pipeline.
	supervisor := capture.NewSupervisor(cfg.Capture, fab, log.WithField("component", "capture"))
	defer supervisor.Stop()

	// Graders and fusion.
	repCache := reputation.NewCache(reputation.NewClient(cfg.Reputation), cfg.Reputation.TTL(),
		log.WithField("component", "reputation"))
	classifier := ml.NewClient(cfg.ML)
	orchestrator := detect.NewOrchestrator(classifier, repCache, supervisor, fab,
		cfg.Reputation.AbuseScoreThreshold, cfg.ML.Deadline(), cfg.Reputation.Deadline(),
		log.WithField("component", "detect"))

	// Optional email alerts on DDoS verdicts.
	if cfg.SMTP.Host != "" {
		notifier := notification.NewEmailNotifier(cfg.SMTP)
		go notification.WatchVerdicts(ctx, fab, notifier, log)
		log.WithField("to", cfg.SMTP.To).Info("verdict email alerts enabled")
	}

	// Offline replay mode: feed a recorded capture through the live
	// pipeline before serving requests.
	if *replayPath != "" {
		if *replayTarget == "" {
			log.Fatal("-replay requires -replay-target")
		}
		src := pcap.NewReplaySource(*replayPath)
		if err := supervisor.StartSource(*replayTarget, "replay", src); err != nil {
			log.WithError(err).Fatal("failed to start pcap replay")
		}
		log.WithFields(logrus.Fields{"file": *replayPath, "target": *replayTarget}).
			Info("replaying pcap into the flow window")
	}

	srv := server.New(orchestrator, supervisor, fab, log.WithField("component", "server"))
	httpServer := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: srv.Handler(),
	}

	go func() {
		log.WithField("addr", httpServer.Addr).Info("request surface listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatalf("could not listen on %s", httpServer.Addr)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shut down")
	}
}
