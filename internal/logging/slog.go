package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Attribute keys shared by every package that logs.
const (
	KeyOperation = "operation"
	KeyFlow      = "flow"
	KeyBackend   = "backend"
	KeyUserHash  = "user_hash"
	KeyDuration  = "duration"
	KeyStatus    = "status"
	KeyError     = "error"
	KeyTool      = "tool"
	keyDomain    = "user_domain"
)

// Handler formats selectable with --log-format.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// New returns a logger for w. Any format other than json yields text output.
func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, FormatJSON) {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// WithOperation tags every record of the returned logger with a Graph operation.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(Operation(operation))
}

// WithFlow tags every record with the sign-in flow name.
func WithFlow(logger *slog.Logger, flow string) *slog.Logger {
	return logger.With(Flow(flow))
}

// WithTool tags every record with the MCP tool name.
func WithTool(logger *slog.Logger, tool string) *slog.Logger {
	return logger.With(slog.String(KeyTool, tool))
}

func Operation(op string) slog.Attr { return slog.String(KeyOperation, op) }

func Flow(flow string) slog.Attr { return slog.String(KeyFlow, flow) }

// Backend names the token cache backend.
func Backend(backend string) slog.Attr { return slog.String(KeyBackend, backend) }

func Status(status string) slog.Attr { return slog.String(KeyStatus, status) }

// Err renders err under the error key. For a nil error it returns an empty
// group, which handlers drop, so callers can pass errors unconditionally.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeEmail maps an address to a stable, case-insensitive pseudonym so
// log lines about one mailbox can be correlated without storing the address.
func AnonymizeEmail(email string) string {
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(strings.ToLower(email)))
	return "user:" + hex.EncodeToString(sum[:8])
}

// UserHash is the attribute form of AnonymizeEmail.
func UserHash(email string) slog.Attr {
	return slog.String(KeyUserHash, AnonymizeEmail(email))
}

// SanitizeToken describes a bearer token by length only.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}

// ExtractDomain returns the part after the single @ in email, or "".
func ExtractDomain(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || strings.Contains(domain, "@") {
		return ""
	}
	return domain
}

// Domain logs the mail domain, which identifies the tenant but not the user.
func Domain(email string) slog.Attr {
	return slog.String(keyDomain, ExtractDomain(email))
}
