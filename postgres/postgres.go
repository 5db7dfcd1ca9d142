// Package postgres implements the repository interfaces on PostgreSQL.
// Object data lives in JSONB; identity lookups use containment queries.
package postgres

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

// Open connects to the database and verifies the connection.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// Stores bundles the repository implementations over one connection
// pool.
type Stores struct {
	db *sql.DB
}

func New(db *sql.DB) *Stores {
	return &Stores{db: db}
}

func (s *Stores) Organizations() *OrganizationRepo { return &OrganizationRepo{db: s.db} }

func (s *Stores) Accounts() *AccountRepo { return &AccountRepo{db: s.db} }

func (s *Stores) ObjectTypes() *ObjectTypeRepo { return &ObjectTypeRepo{db: s.db} }

func (s *Stores) Objects() *ObjectRepo { return &ObjectRepo{db: s.db} }

func (s *Stores) People() *PersonRepo { return &PersonRepo{db: s.db} }

func (s *Stores) VendorCandidates() *VendorCandidateRepo { return &VendorCandidateRepo{db: s.db} }
