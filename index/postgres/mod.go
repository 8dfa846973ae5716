// Package postgres implements the audit persister on PostgreSQL.
package postgres

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.dedis.ch/agora/index"
	"golang.org/x/xerrors"

	// driver for postgresql
	_ "github.com/lib/pq"
)

// Config holds the connection parameters of the audit database. The fields
// are read from the environment with the AGORA_INDEX prefix.
type Config struct {
	Host     string `envconfig:"host" default:"localhost"`
	Port     int    `envconfig:"port" default:"5432"`
	User     string `envconfig:"user" default:"agora"`
	Password string `envconfig:"password"`
	DBName   string `envconfig:"dbname" default:"agora_audit"`
	SSLMode  string `envconfig:"sslmode" default:"disable"`
}

// LoadConfig reads the configuration from a .env file when present, then
// from the environment.
func LoadConfig() (Config, error) {
	// A missing .env file is fine, the environment alone is enough.
	_ = godotenv.Load()

	cfg := Config{}

	err := envconfig.Process("agora_index", &cfg)
	if err != nil {
		return cfg, xerrors.Errorf("failed to process env: %v", err)
	}

	return cfg, nil
}

func (c Config) dsn() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

const auditSchema = `CREATE TABLE IF NOT EXISTS audit_events(
    id SERIAL PRIMARY KEY,
    tx_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    product BIGINT NOT NULL DEFAULT 0,
    account TEXT NOT NULL DEFAULT '',
    content_id TEXT NOT NULL DEFAULT '',
    amount BIGINT NOT NULL DEFAULT 0,
    fee BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_events_kind_idx ON audit_events(kind);
CREATE INDEX IF NOT EXISTS audit_events_product_idx ON audit_events(product);`

const insertRow = `INSERT INTO audit_events
    (tx_id, kind, product, account, content_id, amount, fee, created_at)
    VALUES (:tx_id, :kind, :product, :account, :content_id, :amount, :fee, :created_at)`

// Persister saves audit rows to PostgreSQL.
//
// - implements index.Persister
type Persister struct {
	db *sqlx.DB
}

// NewPersister connects to the database and creates the audit table when it
// does not exist.
func NewPersister(cfg Config) (*Persister, error) {
	db, err := sqlx.Connect("postgres", cfg.dsn())
	if err != nil {
		return nil, xerrors.Errorf("failed to connect: %v", err)
	}

	_, err = db.Exec(auditSchema)
	if err != nil {
		return nil, xerrors.Errorf("failed to create audit table: %v", err)
	}

	return &Persister{db: db}, nil
}

// Save implements index.Persister. The rows of one transaction are saved in
// a single database transaction.
func (p *Persister) Save(rows []index.Row) error {
	tx, err := p.db.Beginx()
	if err != nil {
		return xerrors.Errorf("failed to begin: %v", err)
	}

	for _, row := range rows {
		_, err = tx.NamedExec(insertRow, row)
		if err != nil {
			tx.Rollback()

			return xerrors.Errorf("failed to insert row: %v", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return xerrors.Errorf("failed to commit: %v", err)
	}

	return nil
}

// Close implements index.Persister.
func (p *Persister) Close() error {
	return p.db.Close()
}
