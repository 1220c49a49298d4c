package providers

import (
	"context"

	"github.com/brizzai/idverify/internal/auth/models"
)

// Provider defines the interface that all verification providers must implement
type Provider interface {
	// Type returns the payload type this provider verifies
	Type() string

	// Verify checks the proofs of the payload and returns the verification result.
	// Failures are reported through the result, never as an error.
	Verify(ctx context.Context, payload *models.RequestPayload) *models.VerifiedPayload
}
