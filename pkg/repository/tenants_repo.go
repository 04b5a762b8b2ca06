package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/tendant/seatledger/pkg/domain"
)

const tenantColumns = `id, name, domain, owner_id, is_active, billing_address, contact_email, metadata, created_at, updated_at`

// TenantsRepository handles tenant data persistence.
type TenantsRepository struct {
	db *sql.DB
}

// NewTenantsRepository creates a new tenants repository.
func NewTenantsRepository(db *sql.DB) *TenantsRepository {
	return &TenantsRepository{db: db}
}

// Create creates a new tenant. The tenants_domain_key constraint backs the
// directory's uniqueness check when two creates race.
func (r *TenantsRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	metadata, err := marshalMetadata(tenant.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tenants (id, name, domain, owner_id, is_active, billing_address, contact_email, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.ExecContext(ctx, query,
		tenant.ID,
		tenant.Name,
		tenant.Domain,
		tenant.OwnerID,
		tenant.IsActive,
		tenant.BillingAddress,
		tenant.ContactEmail,
		metadata,
		tenant.CreatedAt,
		tenant.UpdatedAt,
	)
	if isUniqueViolation(err, "tenants_domain_key") {
		return domain.ErrDomainTaken
	}
	return err
}

// GetByID retrieves a tenant by ID.
func (r *TenantsRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByDomain retrieves a tenant by domain, active or not.
func (r *TenantsRepository) GetByDomain(ctx context.Context, tenantDomain string) (*domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE domain = $1`
	return r.getOne(ctx, query, tenantDomain)
}

// Update replaces the mutable fields of a tenant.
func (r *TenantsRepository) Update(ctx context.Context, tenant *domain.Tenant) error {
	metadata, err := marshalMetadata(tenant.Metadata)
	if err != nil {
		return err
	}

	query := `
		UPDATE tenants
		SET name = $2, domain = $3, is_active = $4, billing_address = $5,
		    contact_email = $6, metadata = $7, updated_at = $8
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		tenant.ID,
		tenant.Name,
		tenant.Domain,
		tenant.IsActive,
		tenant.BillingAddress,
		tenant.ContactEmail,
		metadata,
		tenant.UpdatedAt,
	)
	if isUniqueViolation(err, "tenants_domain_key") {
		return domain.ErrDomainTaken
	}
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrTenantNotFound
	}

	return nil
}

// List returns tenants matching the filter ordered by creation time.
func (r *TenantsRepository) List(ctx context.Context, filter domain.TenantFilter) ([]*domain.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM tenants
		WHERE ($1::uuid IS NULL OR owner_id = $1)
		  AND ($2::boolean IS NULL OR is_active = $2)
		ORDER BY created_at ASC
	`
	return r.list(ctx, query, nullableUUID(filter.OwnerID), nullableBool(filter.Active))
}

// ListByIDs returns the tenants with the given IDs. Unknown IDs are skipped.
func (r *TenantsRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Tenant, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
		SELECT ` + tenantColumns + `
		FROM tenants
		WHERE id = ANY($1::uuid[])
		ORDER BY created_at ASC
	`
	return r.list(ctx, query, pq.Array(uuidStrings(ids)))
}

func (r *TenantsRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Tenant, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*domain.Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}

	return tenants, rows.Err()
}

func (r *TenantsRepository) getOne(ctx context.Context, query string, arg any) (*domain.Tenant, error) {
	tenant, err := scanTenant(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTenantNotFound
		}
		return nil, err
	}
	return tenant, nil
}

func scanTenant(row rowScanner) (*domain.Tenant, error) {
	var (
		tenant   domain.Tenant
		metadata []byte
	)
	err := row.Scan(
		&tenant.ID,
		&tenant.Name,
		&tenant.Domain,
		&tenant.OwnerID,
		&tenant.IsActive,
		&tenant.BillingAddress,
		&tenant.ContactEmail,
		&metadata,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if tenant.Metadata, err = unmarshalMetadata(metadata); err != nil {
		return nil, err
	}
	return &tenant, nil
}
