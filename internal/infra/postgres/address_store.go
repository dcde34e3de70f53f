package postgres

import (
	"context"

	"github.com/naijastore/naijastore-api/internal/domain"

	"github.com/jackc/pgx/v5"
)

const addressColumns = `id::text, user_id::text, full_name, phone, address_line1,
	COALESCE(address_line2, ''), city, state, COALESCE(postal_code, ''),
	country, is_default, created_at, updated_at`

func scanAddress(row pgx.Row) (*domain.Address, error) {
	var a domain.Address
	err := row.Scan(&a.ID, &a.UserID, &a.FullName, &a.Phone, &a.AddressLine1,
		&a.AddressLine2, &a.City, &a.State, &a.PostalCode,
		&a.Country, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) ListAddresses(ctx context.Context, userID string) ([]domain.Address, error) {
	rows, err := s.db.Query(ctx, `SELECT `+addressColumns+`
		FROM user_addresses WHERE user_id = $1
		ORDER BY is_default DESC, created_at ASC`, userID)
	if err != nil {
		return nil, mapError("ListAddresses", userID, err)
	}
	defer rows.Close()

	out := []domain.Address{}
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, mapError("ListAddresses", userID, err)
		}
		out = append(out, *a)
	}
	return out, mapError("ListAddresses", userID, rows.Err())
}

func (s *Store) GetAddress(ctx context.Context, userID, addressID string) (*domain.Address, error) {
	a, err := scanAddress(s.db.QueryRow(ctx, `SELECT `+addressColumns+`
		FROM user_addresses WHERE id = $1 AND user_id = $2`, addressID, userID))
	if err != nil {
		return nil, mapError("GetAddress", addressID, err)
	}
	return a, nil
}

// CreateAddress inserts the address. The first address of a user becomes
// the default; a new default clears the previous one in the same tx.
func (s *Store) CreateAddress(ctx context.Context, in *domain.Address) (*domain.Address, error) {
	var out *domain.Address
	err := s.withTx(ctx, "CreateAddress", func(tx pgx.Tx) error {
		// Locks the existing rows of the user for the rest of the tx.
		var existing int
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM (
			SELECT 1 FROM user_addresses WHERE user_id = $1 FOR UPDATE) t`, in.UserID).Scan(&existing); err != nil {
			return mapError("CreateAddress", in.UserID, err)
		}
		isDefault := in.IsDefault || existing == 0
		if isDefault {
			if _, err := tx.Exec(ctx, `UPDATE user_addresses SET is_default = false
				WHERE user_id = $1 AND is_default`, in.UserID); err != nil {
				return mapError("CreateAddress", in.UserID, err)
			}
		}

		a, err := scanAddress(tx.QueryRow(ctx, `INSERT INTO user_addresses
			(user_id, full_name, phone, address_line1, address_line2, city, state, postal_code, country, is_default)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING `+addressColumns,
			in.UserID, in.FullName, in.Phone, in.AddressLine1, nullIfEmpty(in.AddressLine2),
			in.City, in.State, nullIfEmpty(in.PostalCode), in.Country, isDefault))
		if err != nil {
			return mapError("CreateAddress", in.UserID, err)
		}
		out = a
		return nil
	})
	return out, err
}

func (s *Store) UpdateAddress(ctx context.Context, in *domain.Address) (*domain.Address, error) {
	var out *domain.Address
	err := s.withTx(ctx, "UpdateAddress", func(tx pgx.Tx) error {
		if in.IsDefault {
			if _, err := tx.Exec(ctx, `UPDATE user_addresses SET is_default = false
				WHERE user_id = $1 AND id <> $2 AND is_default`, in.UserID, in.ID); err != nil {
				return mapError("UpdateAddress", in.ID, err)
			}
		}
		a, err := scanAddress(tx.QueryRow(ctx, `UPDATE user_addresses SET
			full_name = $3, phone = $4, address_line1 = $5, address_line2 = $6,
			city = $7, state = $8, postal_code = $9, country = $10,
			is_default = (is_default OR $11), updated_at = now()
			WHERE id = $1 AND user_id = $2
			RETURNING `+addressColumns,
			in.ID, in.UserID, in.FullName, in.Phone, in.AddressLine1, nullIfEmpty(in.AddressLine2),
			in.City, in.State, nullIfEmpty(in.PostalCode), in.Country, in.IsDefault))
		if err != nil {
			return mapError("UpdateAddress", in.ID, err)
		}
		out = a
		return nil
	})
	return out, err
}

// DeleteAddress removes the address and, when it was the default,
// promotes the oldest remaining one.
func (s *Store) DeleteAddress(ctx context.Context, userID, addressID string) error {
	return s.withTx(ctx, "DeleteAddress", func(tx pgx.Tx) error {
		var wasDefault bool
		err := tx.QueryRow(ctx, `DELETE FROM user_addresses WHERE id = $1 AND user_id = $2
			RETURNING is_default`, addressID, userID).Scan(&wasDefault)
		if err != nil {
			return mapError("DeleteAddress", addressID, err)
		}
		if !wasDefault {
			return nil
		}
		_, err = tx.Exec(ctx, `UPDATE user_addresses SET is_default = true, updated_at = now()
			WHERE id = (SELECT id FROM user_addresses WHERE user_id = $1
				ORDER BY created_at ASC LIMIT 1)`, userID)
		return mapError("DeleteAddress", addressID, err)
	})
}

func (s *Store) SetDefaultAddress(ctx context.Context, userID, addressID string) (*domain.Address, error) {
	var out *domain.Address
	err := s.withTx(ctx, "SetDefaultAddress", func(tx pgx.Tx) error {
		a, err := scanAddress(tx.QueryRow(ctx, `UPDATE user_addresses SET is_default = true, updated_at = now()
			WHERE id = $1 AND user_id = $2 RETURNING `+addressColumns, addressID, userID))
		if err != nil {
			return mapError("SetDefaultAddress", addressID, err)
		}
		if _, err := tx.Exec(ctx, `UPDATE user_addresses SET is_default = false
			WHERE user_id = $1 AND id <> $2 AND is_default`, userID, addressID); err != nil {
			return mapError("SetDefaultAddress", addressID, err)
		}
		out = a
		return nil
	})
	return out, err
}
