package app

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/valyala/fasthttp"

	"chatstream/pkg/api"
	"chatstream/pkg/auth"
	"chatstream/pkg/config"
	"chatstream/pkg/logger"
	"chatstream/pkg/metrics"
	"chatstream/pkg/store"
	"chatstream/pkg/telemetry"
)

// serveHTTP builds the listener stack and blocks until ctx cancels, then
// drains connections. Health, metrics and docs sit outside the auth
// gateway; the /v1 surface sits behind it.
func serveHTTP(ctx context.Context, cfg *config.Config, addr string, gw *auth.Gateway) error {
	root := http.NewServeMux()
	root.HandleFunc("/healthz", healthz)
	root.HandleFunc("/readyz", readyz)
	root.Handle("/metrics", promhttp.Handler())
	root.Handle("/docs/openapi.yaml", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "docs/openapi.yaml")
	}))
	root.Handle("/docs/", httpSwagger.Handler(httpSwagger.URL("/docs/openapi.yaml")))

	apiChain := metrics.Middleware(
		telemetry.Middleware(telemetry.Options{
			SampleRate:    cfg.Telemetry.SampleRate,
			SlowThreshold: cfg.Telemetry.SlowThreshold.Duration(),
		})(gw.Middleware(api.NewRouter())))
	root.Handle("/v1/", apiChain)

	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: SSE responses stay open for the life of a
		// generation.
	}

	if cfg.Server.HealthAddr != "" {
		startHealthSidecar(cfg.Server.HealthAddr)
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.Server.TLS.CertFile != "" && cfg.Server.TLS.KeyFile != "" {
			logger.Info("listening_tls", "addr", addr)
			err = srv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			logger.Info("listening", "addr", addr)
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	logger.Info("http_draining")
	return srv.Shutdown(shutCtx)
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func readyz(w http.ResponseWriter, _ *http.Request) {
	if !store.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("store not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

// startHealthSidecar serves /healthz and /readyz on a dedicated fasthttp
// listener, for deployments where the main port sits behind an
// auth-terminating proxy.
func startHealthSidecar(addr string) {
	h := func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/healthz":
			ctx.SetStatusCode(fasthttp.StatusOK)
			ctx.SetBodyString("ok")
		case "/readyz":
			if store.Ready() {
				ctx.SetStatusCode(fasthttp.StatusOK)
				ctx.SetBodyString("ready")
			} else {
				ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
				ctx.SetBodyString("store not ready")
			}
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}
	go func() {
		logger.Info("health_sidecar_listening", "addr", addr)
		if err := fasthttp.ListenAndServe(addr, h); err != nil {
			logger.Error("health_sidecar_failed", "addr", addr, "error", err)
		}
	}()
}
