package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	com "github.com/anky/otc-indexer/internal/common"
	"github.com/anky/otc-indexer/internal/config"
	"github.com/anky/otc-indexer/internal/observability"
	"github.com/anky/otc-indexer/internal/services/backend"
	"github.com/anky/otc-indexer/internal/services/db"
	"github.com/anky/otc-indexer/internal/services/ethrequest"
	"github.com/anky/otc-indexer/internal/services/stream"
	"github.com/anky/otc-indexer/internal/services/webhook"
	"github.com/anky/otc-indexer/pkg/index"
	"github.com/anky/otc-indexer/pkg/otc"
	"github.com/anky/otc-indexer/pkg/projector"
	"github.com/anky/otc-indexer/pkg/queue"
	"github.com/anky/otc-indexer/pkg/router"
	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

func main() {
	failed := false
	defer func() {
		// runs after every other deferred cleanup
		if failed {
			os.Exit(1)
		}
	}()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	log.Info("launching indexer...")

	env := flag.String("env", "", "path to .env file")

	port := flag.Int("port", 3000, "port to listen on")

	sync := flag.Int("sync", 5, "seconds between syncs (default: 5)")

	ws := flag.Bool("ws", false, "enable websocket")

	rate := flag.Int("rate", index.DefaultRate, "blocks per log query (default: 99)")

	notify := flag.Bool("notify", false, "send error notifications to discord")

	onlyAPI := flag.Bool("onlyApi", false, "only serve the api, do not index")

	dbpath := flag.String("dbpath", ".", "path to the sqlite db folder, used when DATABASE_URL is not set")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conf, err := config.New(ctx, *env)
	if err != nil {
		log.Fatal(err)
	}

	log.SetLevel(conf.Level())

	if conf.SentryURL != "" && conf.SentryURL != "x" {
		err = sentry.Init(sentry.ClientOptions{
			Dsn:              conf.SentryURL,
			TracesSampleRate: 1.0,
		})
		if err != nil {
			log.Fatalf("sentry.Init: %s", err)
		}
		// Flush buffered events before the program terminates.
		defer sentry.Flush(2 * time.Second)
	}

	w := webhook.NewMessager(conf.DiscordURL, "otc-indexer", *notify)

	metrics := observability.NewMetrics("otc")

	log.Info("starting internal db service...")

	var d *db.DB
	if conf.DatabaseURL != "" {
		d, err = db.NewPostgresDB(ctx, conf.DatabaseURL)
	} else {
		d, err = db.NewSQLiteDB(ctx, *dbpath)
	}
	if err != nil {
		log.Fatal(err)
	}
	defer d.Close()

	log.Infof("using %s store", d.Dialect())

	quitAck := make(chan error, 2)

	if !*onlyAPI {
		stopIndexer, err := startIndexer(ctx, conf, d, w, log, metrics, *ws, *rate, *sync, quitAck)
		if err != nil {
			log.Fatal(err)
		}
		defer stopIndexer()
	}

	log.Info("starting api service...")

	api := router.NewServer(conf.APIKey, conf.ContractAddress, d, log, metrics)

	go func() {
		quitAck <- api.Start(ctx, *port)
	}()

	log.Infof("listening on port: %d", *port)

	select {
	case <-ctx.Done():
		log.Info("shutting down...")
	case err := <-quitAck:
		if err != nil {
			sentry.CaptureException(err)
			w.NotifyError(context.WithoutCancel(ctx), err)
			log.WithError(err).Error("stopping")
			failed = true
		}
		stop()
	}
}

// startIndexer wires the event source, the projector and the notification
// dispatcher, then indexes in the background. The returned func drains the
// pending notifications.
func startIndexer(ctx context.Context, conf *config.Config, d *db.DB, w *webhook.Messager, log *logrus.Logger, metrics *observability.Metrics, ws bool, rate, sync int, quitAck chan<- error) (func(), error) {
	log.Info("connecting to rpc...")

	rpcUrl := conf.RPCURL
	if ws {
		if conf.RPCWSURL == "" {
			return nil, errors.New("RPC_WS_URL is required in websocket mode")
		}
		log.Info("running in websocket mode...")
		rpcUrl = conf.RPCWSURL
	} else {
		log.Info("running in standard http mode...")
	}

	evm, err := ethrequest.NewEthService(ctx, rpcUrl, conf.RPCRate, metrics)
	if err != nil {
		return nil, err
	}

	log.Info("fetching chain id...")

	chid, err := evm.ChainID(ctx)
	if err != nil {
		evm.Close()
		return nil, err
	}

	log.Infof("node running for chain: %s", chid.String())

	forwarders := []otc.Forwarder{
		backend.New(backend.Config{
			BaseURL: conf.BackendBaseURL,
			APIKey:  conf.IndexerAPIKey,
			Timeout: conf.NotifyTimeout,
		}, log, metrics),
	}

	var mirror *stream.Mirror
	if conf.KafkaBrokers != "" {
		log.Infof("mirroring notifications to kafka topic %s...", conf.KafkaTopic)

		p, err := stream.NewProducer(conf.KafkaBrokers)
		if err != nil {
			evm.Close()
			return nil, fmt.Errorf("kafka: %w", err)
		}

		mirror = stream.New(p, conf.KafkaTopic, log, metrics)
		forwarders = append(forwarders, mirror)
	}

	q := queue.NewService(conf.NotifyPending, log, metrics, forwarders...)
	q.Start(ctx)

	p := projector.New(d, q, log, metrics)
	p.Strict = conf.StrictListings

	log.Infof("starting index service for contract %s from block %d...", com.ChecksumAddress(conf.ContractAddress), conf.StartBlock)

	i, err := index.New(index.Config{
		Contract:      conf.ContractAddress,
		StartBlock:    conf.StartBlock,
		Rate:          rate,
		FinalityDepth: conf.FinalityDepth,
	}, d, evm, p, w, log, metrics)
	if err != nil {
		q.Close()
		evm.Close()
		return nil, err
	}

	done := make(chan struct{})

	go func() {
		defer close(done)

		err := i.Background(ctx, sync)
		if err != nil {
			quitAck <- err
		}
	}()

	return func() {
		<-done
		log.Infof("flushing %d pending notifications...", q.Len())
		q.Close()
		if mirror != nil {
			mirror.Close()
		}
		evm.Close()
	}, nil
}
