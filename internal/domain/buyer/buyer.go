// Package buyer describes the remote user profiles that own orders.
package buyer

import (
	"context"

	"github.com/juliakaiko/orderservice/internal/domain/failure"
)

// ErrNotFound is returned when the directory has no profile for the lookup key.
var ErrNotFound = failure.New(failure.NotFound, "buyer not found")

// Profile is the subset of the user service's representation that orders
// expose alongside their own fields.
type Profile struct {
	ID        int64  `json:"userId"`
	Name      string `json:"name"`
	Surname   string `json:"surname"`
	BirthDate string `json:"birthDate,omitempty"`
	Email     string `json:"email"`
}

// Directory resolves buyer profiles. Implementations report a missing
// profile with ErrNotFound and transport problems with failure.Upstream.
type Directory interface {
	ByID(ctx context.Context, id int64) (*Profile, error)
	ByEmail(ctx context.Context, email string) (*Profile, error)
}
