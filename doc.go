// Package authcore is the authentication and account-security core of the
// Immolink marketplace backend.
//
// It owns credential registration and verification, JWT access/refresh
// issuance, email-verification and password-reset token flows, and
// two-factor authentication (TOTP plus single-use backup codes). Persistence
// and outbound email are capabilities injected through the UserStore and
// Mailer interfaces; HTTP routing, search, billing and the chat relay live
// elsewhere and consume this package through the Service API, the
// middleware guard and the realtime authenticator.
//
// Construction goes through the Builder:
//
//	svc, err := authcore.New().
//		WithConfig(cfg).
//		WithStore(store).
//		WithMailer(mailer).
//		Build()
//
// Build refuses to produce a Service without a token signing secret.
package authcore
