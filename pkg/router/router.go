package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/anky/otc-indexer/internal/auth"
	"github.com/anky/otc-indexer/internal/fees"
	"github.com/anky/otc-indexer/internal/listings"
	"github.com/anky/otc-indexer/internal/observability"
	"github.com/anky/otc-indexer/internal/version"
	"github.com/anky/otc-indexer/pkg/otc"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Store is the read side the api serves from
type Store interface {
	otc.Reader
	version.CursorReader
}

type Router struct {
	apiKey   string
	contract string
	store    Store
	log      *logrus.Logger
	metrics  *observability.Metrics
}

func NewServer(apiKey, contract string, store Store, log *logrus.Logger, metrics *observability.Metrics) *Router {
	return &Router{
		apiKey,
		contract,
		store,
		log,
		metrics,
	}
}

// Handler builds the read api
func (r *Router) Handler() http.Handler {
	cr := chi.NewRouter()

	a := auth.New(r.apiKey)

	// configure middleware
	cr.Use(middleware.RequestID)
	cr.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: r.log, NoColor: true}))
	cr.Use(middleware.Recoverer)

	// configure custom middleware
	cr.Use(OptionsMiddleware)
	cr.Use(HealthMiddleware)
	cr.Use(a.AuthMiddleware)
	cr.Use(middleware.Compress(9))

	// instantiate handlers
	l := listings.NewService(r.store)
	f := fees.NewService(r.store)
	v := version.NewService(r.store, r.contract)

	// configure routes
	cr.Route("/listings", func(cr chi.Router) {
		cr.Get("/", l.List)

		cr.Route("/{listing_id}", func(cr chi.Router) {
			cr.Get("/", l.Get)
			cr.Get("/executions", l.GetExecutions)
			cr.Get("/cancellations", l.GetCancellations)
		})
	})

	cr.Get("/executions", l.ListExecutions)
	cr.Get("/cancellations", l.ListCancellations)

	cr.Route("/fees", func(cr chi.Router) {
		cr.Get("/withdrawals", f.Withdrawals)
		cr.Get("/recipients", f.Recipients)
	})

	cr.Get("/version", v.Current)
	cr.Get("/status", v.Status)

	if r.metrics != nil {
		cr.Method(http.MethodGet, "/metrics", r.metrics.Handler())
	}

	return cr
}

// Start serves the api on port until ctx is cancelled
func (r *Router) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%v", port),
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		srv.Shutdown(shutdownCtx)
	}()

	// start the server
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}
