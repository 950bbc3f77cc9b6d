// Package provider defines the price source capability consumed by the
// tiered cache. Providers are independently faulty; callers treat any error
// as a miss and move on.
package provider

import (
	"context"
	"errors"
)

// ErrNoPrice is returned when a source answered but had no quote for the
// symbol.
var ErrNoPrice = errors.New("no price available")

type Provider interface {
	Name() string
	FetchPrice(ctx context.Context, symbol string) (float64, error)
}
