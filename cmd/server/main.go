package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartinbox/backend/internal/api"
	"github.com/smartinbox/backend/internal/auth"
	"github.com/smartinbox/backend/internal/config"
	"github.com/smartinbox/backend/internal/crypto"
	"github.com/smartinbox/backend/internal/db"
	"github.com/smartinbox/backend/internal/sync"
	ws "github.com/smartinbox/backend/internal/websocket"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	pool, err := db.NewConnection(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.CloseConnection(pool)

	log.Printf("Successfully connected to database")

	server := NewServer(cfg, pool)

	address := ":" + cfg.Port
	log.Printf("Smart Inbox backend server starting on %s (environment: %s)", address, cfg.Environment)

	if err := http.ListenAndServe(address, server); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

// NewServer creates and returns a new HTTP handler for the Smart Inbox API server.
func NewServer(cfg *config.Config, dbPool *pgxpool.Pool) http.Handler {
	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKeyBase64)
	if err != nil {
		log.Fatalf("Failed to create encryptor: %v", err)
	}

	wsHub := ws.NewHub(10)
	engine := sync.NewEngine(dbPool, encryptor, wsHub, cfg.ProviderBaseURL, cfg.SyncDaysWithin)

	linkHandler := api.NewLinkHandler(dbPool, encryptor, engine, cfg)
	accountsHandler := api.NewAccountsHandler(dbPool)
	threadsHandler := api.NewThreadsHandler(dbPool, engine)
	searchHandler := api.NewSearchHandler(dbPool)
	sendHandler := api.NewSendHandler(dbPool, encryptor, cfg)
	wsHandler := api.NewWebSocketHandler(wsHub)

	mux := http.NewServeMux()

	mux.HandleFunc("/", handleRoot)

	mux.Handle("/api/v1/auth/callback", auth.RequireAuth(http.HandlerFunc(linkHandler.Callback)))
	mux.Handle("/api/v1/initial-sync", auth.RequireAuth(http.HandlerFunc(linkHandler.InitialSync)))
	mux.Handle("/api/v1/accounts", auth.RequireAuth(http.HandlerFunc(accountsHandler.GetAccounts)))
	mux.Handle("/api/v1/suggestions", auth.RequireAuth(http.HandlerFunc(accountsHandler.GetSuggestions)))
	mux.Handle("/api/v1/threads", auth.RequireAuth(http.HandlerFunc(threadsHandler.GetThreads)))
	mux.Handle("/api/v1/threads/count", auth.RequireAuth(http.HandlerFunc(threadsHandler.GetThreadCount)))
	mux.Handle("/api/v1/threads/done", auth.RequireAuth(http.HandlerFunc(threadsHandler.SetDone)))
	mux.Handle("/api/v1/reply-details", auth.RequireAuth(http.HandlerFunc(threadsHandler.GetReplyDetails)))
	mux.Handle("/api/v1/search", auth.RequireAuth(http.HandlerFunc(searchHandler.Search)))
	mux.Handle("/api/v1/send", auth.RequireAuth(http.HandlerFunc(sendHandler.SendEmail)))
	// WebSocket handler handles its own authentication via query parameter
	// (since browsers can't set headers on WebSocket connections).
	mux.Handle("/api/v1/ws", http.HandlerFunc(wsHandler.Handle))

	return mux
}

func handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Smart Inbox API is running")
}
