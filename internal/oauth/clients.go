package oauth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/lib/pq"
)

// ErrClientNotFound is returned when a client id is not registered.
var ErrClientNotFound = errors.New("client not found")

// ClientStore persists dynamically registered OAuth clients.
type ClientStore interface {
	SaveClient(ctx context.Context, client *Client) error
	GetClient(ctx context.Context, clientID string) (*Client, error)
	Close() error
}

// NewClientStoreFromEnv uses Postgres when DATABASE_URL (or
// OAUTH_DATABASE_URL) is set and falls back to the in-memory store.
// Memory-only registrations do not survive a restart; that is the documented
// default.
func NewClientStoreFromEnv() (ClientStore, error) {
	connString := os.Getenv("OAUTH_DATABASE_URL")
	if connString == "" {
		connString = os.Getenv("DATABASE_URL")
	}
	if connString == "" {
		return NewMemoryClientStore(), nil
	}
	return NewPostgresClientStore(connString)
}

// MemoryClientStore keeps registered clients in a lock-guarded map.
type MemoryClientStore struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewMemoryClientStore creates an empty in-memory client store.
func NewMemoryClientStore() *MemoryClientStore {
	return &MemoryClientStore{clients: make(map[string]*Client)}
}

// SaveClient stores a client, overwriting any existing registration.
func (s *MemoryClientStore) SaveClient(_ context.Context, client *Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *client
	s.clients[client.ClientID] = &copied
	return nil
}

// GetClient fetches a client by id.
func (s *MemoryClientStore) GetClient(_ context.Context, clientID string) (*Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	client, ok := s.clients[clientID]
	if !ok {
		return nil, ErrClientNotFound
	}
	copied := *client
	return &copied, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryClientStore) Close() error { return nil }

// PostgresClientStore persists registered clients in Postgres.
type PostgresClientStore struct {
	db *sql.DB
}

// NewPostgresClientStore opens the database and ensures the schema exists.
func NewPostgresClientStore(connString string) (*PostgresClientStore, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	store := &PostgresClientStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}
	return store, nil
}

// SaveClient stores an OAuth client.
func (s *PostgresClientStore) SaveClient(ctx context.Context, client *Client) error {
	query := `
		INSERT INTO oauth_clients
			(client_id, client_secret_hash, redirect_uris, grant_types, response_types, scope, token_endpoint_auth_method, client_name, client_uri, client_id_issued_at, client_secret_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (client_id)
		DO UPDATE SET
			client_secret_hash = EXCLUDED.client_secret_hash,
			redirect_uris = EXCLUDED.redirect_uris,
			grant_types = EXCLUDED.grant_types,
			response_types = EXCLUDED.response_types,
			scope = EXCLUDED.scope,
			token_endpoint_auth_method = EXCLUDED.token_endpoint_auth_method,
			client_name = EXCLUDED.client_name,
			client_uri = EXCLUDED.client_uri,
			updated_at = EXCLUDED.updated_at
	`

	now := time.Now()
	if client.CreatedAt.IsZero() {
		client.CreatedAt = now
	}
	client.UpdatedAt = now

	_, err := s.db.ExecContext(
		ctx,
		query,
		client.ClientID,
		nullableString(client.ClientSecretHash),
		pq.Array(client.RedirectURIs),
		pq.Array(client.GrantTypes),
		pq.Array(client.ResponseTypes),
		nullableString(client.Scope),
		client.TokenEndpointAuthMethod,
		nullableString(client.ClientName),
		nullableString(client.ClientURI),
		client.ClientIDIssuedAt,
		client.ClientSecretExpiresAt,
		client.CreatedAt,
		client.UpdatedAt,
	)
	return err
}

// GetClient fetches an OAuth client by id.
func (s *PostgresClientStore) GetClient(ctx context.Context, clientID string) (*Client, error) {
	query := `
		SELECT client_id, client_secret_hash, redirect_uris, grant_types, response_types, scope, token_endpoint_auth_method, client_name, client_uri, client_id_issued_at, client_secret_expires_at, created_at, updated_at
		FROM oauth_clients
		WHERE client_id = $1
	`

	var client Client
	var redirectURIs, grantTypes, responseTypes []string
	var scope, secretHash, clientName, clientURI sql.NullString

	err := s.db.QueryRowContext(ctx, query, clientID).Scan(
		&client.ClientID,
		&secretHash,
		pq.Array(&redirectURIs),
		pq.Array(&grantTypes),
		pq.Array(&responseTypes),
		&scope,
		&client.TokenEndpointAuthMethod,
		&clientName,
		&clientURI,
		&client.ClientIDIssuedAt,
		&client.ClientSecretExpiresAt,
		&client.CreatedAt,
		&client.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrClientNotFound
	}
	if err != nil {
		return nil, err
	}

	client.ClientSecretHash = secretHash.String
	client.RedirectURIs = redirectURIs
	client.GrantTypes = grantTypes
	client.ResponseTypes = responseTypes
	client.Scope = scope.String
	client.ClientName = clientName.String
	client.ClientURI = clientURI.String
	return &client, nil
}

// Close closes the database connection.
func (s *PostgresClientStore) Close() error {
	return s.db.Close()
}

func (s *PostgresClientStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS oauth_clients (
		client_id VARCHAR(255) PRIMARY KEY,
		client_secret_hash TEXT,
		redirect_uris TEXT[] NOT NULL,
		grant_types TEXT[] NOT NULL,
		response_types TEXT[] NOT NULL,
		scope TEXT,
		token_endpoint_auth_method VARCHAR(50) NOT NULL,
		client_name TEXT,
		client_uri TEXT,
		client_id_issued_at BIGINT NOT NULL DEFAULT 0,
		client_secret_expires_at BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_oauth_clients_client_id ON oauth_clients(client_id);
	`

	_, err := s.db.Exec(query)
	return err
}

func nullableString(val string) sql.NullString {
	if val == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: val, Valid: true}
}
