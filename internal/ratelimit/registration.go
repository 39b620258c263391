package ratelimit

import (
	"context"
	"time"
)

// Registration limits.
const (
	IPLimit     = 5
	IPWindow    = time.Hour
	EmailLimit  = 1
	EmailWindow = 24 * time.Hour
)

// Reasons reported when registration is throttled.
const (
	ReasonIPBlocked    = "IP_BLOCKED"
	ReasonEmailBlocked = "EMAIL_BLOCKED"
)

// RegistrationLimiter throttles sign-ups per client IP and per email.
type RegistrationLimiter struct {
	ip    *Limiter
	email *Limiter
}

// NewRegistrationLimiter uses the standard IP and email windows.
func NewRegistrationLimiter(store Store) *RegistrationLimiter {
	return &RegistrationLimiter{
		ip:    NewLimiter(store, "register:ip:", IPLimit, IPWindow),
		email: NewLimiter(store, "register:email:", EmailLimit, EmailWindow),
	}
}

// CheckIP records an attempt from ip.
func (r *RegistrationLimiter) CheckIP(ctx context.Context, ip string) (Result, error) {
	return r.ip.Allow(ctx, ip)
}

// CheckEmail records an attempt for a normalized email.
func (r *RegistrationLimiter) CheckEmail(ctx context.Context, email string) (Result, error) {
	return r.email.Allow(ctx, email)
}
