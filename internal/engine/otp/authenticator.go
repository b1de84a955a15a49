// internal/engine/otp/authenticator.go
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"firmadoc-engine/internal/common/clock"
	stderr "firmadoc-engine/internal/common/errors"
	"firmadoc-engine/internal/common/logger"
	"firmadoc-engine/internal/common/metrics"
)

// Authenticator issues and verifies single-use codes bound to a document.
// It is stateless beyond the stored credential: rate limiting is the
// caller's concern.
type Authenticator struct {
	store  CredentialStore
	clock  clock.Clock
	logger logger.Logger
	ttl    time.Duration
	digits int
}

func NewAuthenticator(store CredentialStore, clk clock.Clock, log logger.Logger, ttl time.Duration, digits int) *Authenticator {
	if digits <= 0 {
		digits = 6
	}
	return &Authenticator{
		store:  store,
		clock:  clk,
		logger: log.WithFields(map[string]interface{}{"component": "otp"}),
		ttl:    ttl,
		digits: digits,
	}
}

// Issue generates a fresh code for the document, replacing any prior
// unconsumed one, and returns it so the caller can schedule delivery.
func (a *Authenticator) Issue(ctx context.Context, documentID string) (string, error) {
	code, err := a.generateCode()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	cred := Credential{
		Code:     code,
		IssuedAt: a.clock.Now(),
	}
	if err := a.store.Put(ctx, documentID, cred, a.ttl); err != nil {
		return "", stderr.NewPersistenceFailedError(err)
	}

	a.logger.Info("code issued", map[string]interface{}{
		"documentId": documentID,
		"ttl":        a.ttl.String(),
	})
	return code, nil
}

// Verify checks the supplied code and consumes it on success. Failure modes
// are kept distinct so the client flow can render the right message:
// OTP_EXPIRED, OTP_MISMATCH, OTP_ALREADY_CONSUMED.
func (a *Authenticator) Verify(ctx context.Context, documentID, suppliedCode string) error {
	cred, err := a.store.Get(ctx, documentID)
	if errors.Is(err, ErrNoCredential) {
		metrics.OTPVerifications.WithLabelValues("expired").Inc()
		return stderr.NewOTPExpiredError(documentID)
	}
	if err != nil {
		return stderr.NewPersistenceFailedError(err)
	}

	if cred.Code != suppliedCode {
		metrics.OTPVerifications.WithLabelValues("mismatch").Inc()
		return stderr.NewOTPMismatchError(documentID)
	}
	if cred.Consumed {
		metrics.OTPVerifications.WithLabelValues("consumed").Inc()
		return stderr.NewOTPAlreadyConsumedError(documentID)
	}

	if err := a.store.MarkConsumed(ctx, documentID); err != nil {
		return stderr.NewPersistenceFailedError(err)
	}

	metrics.OTPVerifications.WithLabelValues("success").Inc()
	a.logger.Info("code verified", map[string]interface{}{"documentId": documentID})
	return nil
}

func (a *Authenticator) generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < a.digits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", a.digits, n), nil
}
