package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ORNL/curifactory-go/internal/params"
)

// ErrUnknownHash reports a parameter-set hash with no registry entry.
var ErrUnknownHash = errors.New("parameter set hash not in registry")

// RegisterParamSet records the set's hash alongside the field
// representations that produced it. Re-registering the same hash is a
// no-op; the representation is immutable for a given hash by construction.
func (r *Registry) RegisterParamSet(ctx context.Context, set params.ParamSet) error {
	hash, err := params.Hash(set)
	if err != nil {
		return fmt.Errorf("register parameter set %q: %w", set.ParamName(), err)
	}
	entry, err := params.RegistryEntry(set)
	if err != nil {
		return fmt.Errorf("register parameter set %q: %w", set.ParamName(), err)
	}
	representation, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode parameter set %q: %w", set.ParamName(), err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO params_registry (hash, name, representation)
		VALUES (?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, hash, set.ParamName(), representation)
	if err != nil {
		return fmt.Errorf("register parameter set %q: %w", set.ParamName(), err)
	}
	return nil
}

// ParamSetEntry returns the recorded name and representation for a hash.
func (r *Registry) ParamSetEntry(ctx context.Context, hash string) (string, map[string]any, error) {
	var name string
	var representation []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT name, representation FROM params_registry WHERE hash = ?`, hash,
	).Scan(&name, &representation)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, fmt.Errorf("%w: %s", ErrUnknownHash, hash)
	}
	if err != nil {
		return "", nil, fmt.Errorf("look up hash %s: %w", hash, err)
	}

	var entry map[string]any
	if err := json.Unmarshal(representation, &entry); err != nil {
		return "", nil, fmt.Errorf("decode entry for hash %s: %w", hash, err)
	}
	return name, entry, nil
}
