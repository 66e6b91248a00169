package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/tastebud-backend/internal/discounts"
	"github.com/angelmondragon/tastebud-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/tastebud-backend/pkg/errors"
)

// Service opens carts from storage.
type Service struct {
	store  Storage
	policy *discounts.Policy
	rates  pricing.Rates
}

// NewService builds a cart service backed by the provided storage.
func NewService(store Storage, policy *discounts.Policy, rates pricing.Rates) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cart storage required")
	}
	if policy == nil {
		return nil, fmt.Errorf("discount policy required")
	}
	return &Service{store: store, policy: policy, rates: rates}, nil
}

// Open loads the customer's cart. Missing or corrupt blobs give an empty cart.
func (s *Service) Open(ctx context.Context, customerID uuid.UUID) (*Cart, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	key := customerID.String()

	raw, err := s.store.Load(ctx, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	return &Cart{
		customerID: key,
		state:      decode(raw, s.policy),
		store:      s.store,
		policy:     s.policy,
		rates:      s.rates,
	}, nil
}

// Policy exposes the discount policy the carts are priced with.
func (s *Service) Policy() *discounts.Policy {
	return s.policy
}

// Rates exposes the pricing rates the carts are priced with.
func (s *Service) Rates() pricing.Rates {
	return s.rates
}
