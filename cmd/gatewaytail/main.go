// Command gatewaytail connects one bot session to the gateway and prints
// every dispatch it receives.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"

	"github.com/rickgao/discord-core/internal/auth"
	"github.com/rickgao/discord-core/internal/config"
	"github.com/rickgao/discord-core/internal/gateway"
	"github.com/rickgao/discord-core/internal/ratestats"
	"github.com/rickgao/discord-core/internal/rest"
	"github.com/rickgao/discord-core/internal/sessionstore"
	"github.com/rickgao/discord-core/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/gatewaytail.yaml", "path to config file (.yaml or .toml)")
	filter := flag.String("events", "", "comma-separated dispatch names to print (default all)")
	healthAddr := flag.String("health", "", "address for the health endpoint, e.g. :8080")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting gatewaytail",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	token, err := loadToken(cfg.Client)
	if err != nil {
		logger.Error("failed to load token", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	restOpts := []rest.ClientOption{
		rest.WithLogger(logger),
		rest.WithBaseURL(cfg.API.BaseURL),
		rest.WithAPIVersion(cfg.API.Version),
		rest.WithTimeout(cfg.API.Timeout),
		rest.WithRetryOffset(cfg.API.RetryOffset),
	}
	if cfg.API.UserAgent != "" {
		restOpts = append(restOpts, rest.WithUserAgent(cfg.API.UserAgent))
	}
	client := rest.NewClient(string(token), restOpts...)
	defer client.Close()

	if cfg.RateStats.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RateStats.Addr,
			Password: cfg.RateStats.Password,
			DB:       cfg.RateStats.DB,
		})
		defer rdb.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			logger.Error("rate stats redis unavailable", "addr", cfg.RateStats.Addr, "error", err)
			os.Exit(1)
		}

		tracker := ratestats.NewTracker(ratestats.NewRedis(rdb,
			ratestats.WithPrefix(cfg.RateStats.Prefix),
			ratestats.WithTTL(cfg.RateStats.TTL),
		), logger)
		tracker.Attach(client)
		defer tracker.Close()

		logger.Info("rate stats enabled", "addr", cfg.RateStats.Addr, "prefix", cfg.RateStats.Prefix)
	}

	store, err := sessionstore.Open(ctx, cfg.SessionStore, logger)
	if err != nil {
		logger.Error("failed to open session store", "driver", cfg.SessionStore.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	sess := gateway.NewSession(gatewayConfig(cfg, token), client,
		gateway.WithLogger(logger),
		gateway.WithStore(store),
	)

	printer := newPrinter(*filter)
	sess.Events().Dispatch.Subscribe(printer.print)
	sess.Events().Ready.Subscribe(func(r gateway.ReadyData) {
		printer.status("ready: session %s, resume url %s", r.SessionID, r.ResumeGatewayURL)
	})
	sess.Events().Resumed.Subscribe(func(r gateway.ResumedEvent) {
		printer.status("resumed session %s at seq %d", r.SessionID, r.Seq)
	})
	sess.Events().Close.Subscribe(func(c gateway.CloseEvent) {
		printer.warn("socket closed: %d %s %s", c.Code, gateway.CloseCodeName(c.Code), c.Reason)
	})

	if *healthAddr != "" {
		srv := &http.Server{
			Addr:    *healthAddr,
			Handler: healthHandler(sess, client),
		}
		go func() {
			logger.Info("starting health server", "addr", *healthAddr)
			if err := srv.ListenAndServe(); err != http.ErrServerClosed {
				logger.Error("health server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	if err := sess.Connect(ctx); err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down...")
		sess.Close()
	case <-sess.Done():
		if err := sess.Err(); err != nil {
			logger.Error("session ended", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("gatewaytail stopped")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func loadToken(cfg config.ClientConfig) (auth.Token, error) {
	if cfg.Token != "" {
		return auth.NewToken(cfg.Token)
	}
	return auth.LoadToken(cfg.TokenFile)
}

func gatewayConfig(cfg *config.Config, token auth.Token) gateway.Config {
	g := gateway.DefaultConfig()
	g.Token = string(token)
	g.Intents = cfg.Client.Intents
	g.URL = cfg.Gateway.URL
	g.Version = cfg.Gateway.Version
	g.Compress = cfg.Gateway.CompressEnabled()
	g.ReconnectDelay = cfg.Gateway.ReconnectDelay
	g.MaxReconnectDelay = cfg.Gateway.MaxReconnectDelay
	g.HandshakeTimeout = cfg.Gateway.HandshakeTimeout
	g.WriteTimeout = cfg.Gateway.WriteTimeout
	g.SendRate = cfg.Gateway.SendRate
	g.SendBurst = cfg.Gateway.SendBurst
	g.SessionKey = cfg.Client.ApplicationID
	g.KeepSessionOnClose = cfg.Gateway.KeepSession
	return g
}

type printer struct {
	only  map[string]bool
	name  *color.Color
	seq   *color.Color
	info  *color.Color
	alert *color.Color
}

func newPrinter(filter string) *printer {
	p := &printer{
		name:  color.New(color.FgCyan, color.Bold),
		seq:   color.New(color.FgHiBlack),
		info:  color.New(color.FgGreen),
		alert: color.New(color.FgYellow),
	}
	for _, name := range strings.Split(filter, ",") {
		if name = strings.TrimSpace(name); name != "" {
			if p.only == nil {
				p.only = make(map[string]bool)
			}
			p.only[strings.ToUpper(name)] = true
		}
	}
	return p
}

func (p *printer) print(d gateway.Dispatch) {
	if p.only != nil && !p.only[d.Name] {
		return
	}
	fmt.Printf("%s %s %s\n",
		p.seq.Sprintf("#%d", d.Seq),
		p.name.Sprint(d.Name),
		string(d.Data),
	)
}

func (p *printer) status(format string, args ...any) {
	p.info.Printf(format+"\n", args...)
}

func (p *printer) warn(format string, args ...any) {
	p.alert.Printf(format+"\n", args...)
}

// healthHandler reports the session state and the REST buckets.
func healthHandler(sess *gateway.Session, client *rest.Client) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		state := sess.State()
		health := map[string]any{
			"status":     "healthy",
			"state":      state.String(),
			"session_id": sess.SessionID(),
		}
		if ping := sess.Ping(); ping != gateway.PingUnknown {
			health["ping_ms"] = ping.Milliseconds()
		}

		w.Header().Set("Content-Type", "application/json")
		if state != gateway.StateReady {
			health["status"] = "degraded"
		}
		if state == gateway.StateFailed {
			health["status"] = "unhealthy"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/buckets", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(client.Buckets())
	})

	return mux
}
