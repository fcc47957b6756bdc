package main

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tecrolabs/otus-mcp/cmd/mcp-server/handlers"
	oauthsrv "github.com/tecrolabs/otus-mcp/cmd/mcp-server/oauth"
	"github.com/tecrolabs/otus-mcp/internal/auth"
	"github.com/tecrolabs/otus-mcp/internal/config"
	"github.com/tecrolabs/otus-mcp/internal/events"
	"github.com/tecrolabs/otus-mcp/internal/oauth"
	"github.com/tecrolabs/otus-mcp/internal/upstream"
	"github.com/tecrolabs/otus-mcp/pkg/mcp"
)

const ServiceVersion = "v1.0.0"

func init() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if lvl, err := log.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	}

	config.LoadEnv("../../.env")
}

func main() {
	cfg, err := config.LoadSettings()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Token validation pipeline
	keys := auth.NewKeyCache(cfg.JWKSURL, cfg.JWKSCacheTTL)
	validator := auth.NewValidator(cfg, keys)
	verifier := auth.NewTokenVerifier(validator)

	// Stores
	states, err := oauth.NewStateStoreFromEnv(cfg.StateTTL)
	if err != nil {
		log.Fatalf("Failed to initialize state store: %v", err)
	}
	clients, err := oauth.NewClientStoreFromEnv()
	if err != nil {
		log.Fatalf("Failed to initialize client store: %v", err)
	}
	defer clients.Close()

	// Upstream clients
	ares := upstream.NewAresClient(cfg)
	otus := upstream.NewOtusClient(cfg)

	// Optional AMQP audit trail
	publisher, err := events.NewPublisherFromEnv()
	if err != nil {
		log.Warnf("Auth event publishing disabled: %v", err)
	}
	if publisher != nil {
		defer publisher.Close()
	}

	proxy := oauthsrv.NewProxy(cfg, states, ares, publisher)
	registrar := oauthsrv.NewRegistrar(clients)
	metadata := auth.NewMetadata(cfg)

	// MCP server and tools
	server := mcp.NewServer("otus-mcp-server", ServiceVersion)
	teams := handlers.NewTeamsHandler(otus)
	server.RegisterTool(teams.Tool(), teams.Handle)
	transport := mcp.NewTransport(server)

	mux := http.NewServeMux()

	mux.HandleFunc("/", handleRoot(cfg))
	mux.HandleFunc("/healthz", handleHealth)

	// Discovery metadata
	mux.HandleFunc("/.well-known/oauth-protected-resource", metadata.HandleProtectedResource)
	mux.HandleFunc("/.well-known/oauth-authorization-server", metadata.HandleAuthorizationServer)

	// OAuth surface
	mux.HandleFunc("/register", registrar.HandleRegister)
	mux.HandleFunc("/oauth/authorize", proxy.HandleAuthorize)
	mux.HandleFunc("/oauth/token", proxy.HandleToken)
	mux.HandleFunc("/auth/start", proxy.HandleAuthStart)
	mux.HandleFunc("/auth/callback", proxy.HandleAuthCallback)
	mux.HandleFunc("/auth/refresh", proxy.HandleAuthRefresh)

	// MCP transport (bearer-protected by the middleware below)
	transport.Mount(mux)

	middleware := auth.NewMiddleware(cfg, verifier, nil)
	middleware.OnReject = publisher.AuthRejected
	handler := corsMiddleware(middleware.Handler(mux))

	addr := cfg.ListenAddr()
	log.Infof("Starting Otus MCP server %s on %s", ServiceVersion, addr)
	log.Infof("  - MCP endpoint:       %s/mcp", cfg.ServerURL)
	log.Infof("  - Resource metadata:  %s", cfg.ResourceMetadataURL())
	log.Infof("  - Authorize proxy:    %s/oauth/authorize", cfg.ServerURL)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func handleRoot(cfg config.Settings) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"name":    "otus-mcp-server",
			"version": ServiceVersion,
			"endpoints": map[string]string{
				"mcp":                 cfg.ServerURL + "/mcp",
				"sse":                 cfg.ServerURL + "/sse",
				"authorization":       cfg.ServerURL + "/oauth/authorize",
				"token":               cfg.ServerURL + "/oauth/token",
				"registration":        cfg.ServerURL + "/register",
				"resource_metadata":   cfg.ResourceMetadataURL(),
				"authserver_metadata": cfg.ServerURL + "/.well-known/oauth-authorization-server",
			},
		})
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "otus-mcp-server",
		"version": ServiceVersion,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Errorf("Failed to write response: %v", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
