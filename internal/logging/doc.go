// Package logging provides structured logging helpers for inboxreader.
//
// Everything logs through log/slog. This package keeps attribute names
// consistent and makes sure credentials and mailbox addresses never reach
// the log in clear text.
//
// Create a logger for a flow:
//
//	logger := logging.WithFlow(slog.Default(), "device-code")
//	logger.Info("polling token endpoint", logging.Status("pending"))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("signed in", logging.UserHash(profile.Mail))
//	logger.Debug("token acquired", "token", logging.SanitizeToken(tok))
package logging
