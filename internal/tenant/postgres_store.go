package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const selectTenantSQL = `
	SELECT id, archetype_key, display_name, language, address, phone, domain,
	       opening_hours, specialty, services_offered, service_zones,
	       payment_currency, payment_method, payment_details, knowledge_base_ref
	FROM tenants WHERE id = $1`

// PostgresStore reads tenant records from the tenants table.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	if db == nil {
		panic("tenant: db cannot be nil")
	}
	return &PostgresStore{db: db}
}

// Name implements Store.
func (s *PostgresStore) Name() Provenance { return ProvenancePostgres }

// Get returns ErrNotFound when no row matches.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	var (
		rec                                    Record
		language, address, phone, domain       sql.NullString
		hours, specialty, kbRef                sql.NullString
		currency, method, details, displayName sql.NullString
	)
	err := s.db.QueryRowContext(ctx, selectTenantSQL, id).Scan(
		&rec.ID, &rec.ArchetypeKey, &displayName, &language, &address, &phone, &domain,
		&hours, &specialty, pq.Array(&rec.ServicesOffered), pq.Array(&rec.ServiceZones),
		&currency, &method, &details, &kbRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tenant: postgres get: %w", err)
	}
	rec.DisplayName = displayName.String
	rec.Language = language.String
	rec.Address = address.String
	rec.Phone = phone.String
	rec.Domain = domain.String
	rec.OpeningHours = hours.String
	rec.Specialty = specialty.String
	rec.KnowledgeBaseRef = kbRef.String
	rec.Payment = Payment{Currency: currency.String, Method: method.String, DetailsText: details.String}
	return &rec, nil
}
