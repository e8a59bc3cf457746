package auth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/teemow/inboxreader/internal/logging"
)

// Flow names accepted by NewFlow.
const (
	FlowDeviceCode  = "device-code"
	FlowInteractive = "interactive"
	FlowAuthCode    = "auth-code"
)

// FlowNames lists the supported flows in display order.
var FlowNames = []string{FlowDeviceCode, FlowInteractive, FlowAuthCode}

const (
	// DefaultCallbackAddr is where AuthCodeFlow listens for the redirect.
	DefaultCallbackAddr = "localhost:8000"
	// DefaultCallbackPath is the redirect path on the callback listener.
	DefaultCallbackPath = "/callback"
	// DefaultCallbackTimeout bounds the wait for the browser redirect.
	DefaultCallbackTimeout = 120 * time.Second
	// DefaultHTTPTimeout bounds each request to the identity platform.
	DefaultHTTPTimeout = 30 * time.Second
)

// Flow obtains a new credential through user interaction.
type Flow interface {
	// Name returns the flow identifier, one of the Flow* constants.
	Name() string
	// Run blocks until the user completed sign-in, the flow failed, or ctx ended.
	// identityHint pre-fills the account where the flow supports it.
	Run(ctx context.Context, identityHint string) (*Credential, error)
}

// FlowOptions configures any of the flows. Zero values select defaults.
type FlowOptions struct {
	ClientID  string
	Endpoints Endpoints
	Scopes    []string

	HTTPClient *http.Client
	// Prompt receives user-facing instructions such as the device code.
	Prompt io.Writer
	Logger *slog.Logger
	// OpenBrowser opens a URL in the system browser.
	OpenBrowser func(url string) error
	Observer    StateObserver

	CallbackAddr    string
	CallbackPath    string
	CallbackTimeout time.Duration
}

func (o FlowOptions) withDefaults() FlowOptions {
	if o.ClientID == "" {
		o.ClientID = DefaultClientID
	}
	if o.Endpoints.TokenURL == "" {
		o.Endpoints = NewEndpoints("", "")
	}
	if len(o.Scopes) == 0 {
		o.Scopes = DefaultScopes
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if o.Prompt == nil {
		o.Prompt = io.Discard
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.OpenBrowser == nil {
		o.OpenBrowser = OpenBrowser
	}
	if o.CallbackAddr == "" {
		o.CallbackAddr = DefaultCallbackAddr
	}
	if o.CallbackPath == "" {
		o.CallbackPath = DefaultCallbackPath
	}
	if o.CallbackTimeout <= 0 {
		o.CallbackTimeout = DefaultCallbackTimeout
	}
	return o
}

func (o FlowOptions) tracker(flow string) stateTracker {
	return stateTracker{flow: flow, logger: logging.WithFlow(o.Logger, flow), observer: o.Observer}
}

// NewFlow builds the flow registered under name.
func NewFlow(name string, opts FlowOptions) (Flow, error) {
	switch name {
	case FlowDeviceCode:
		return NewDeviceCodeFlow(opts), nil
	case FlowInteractive:
		return NewInteractiveFlow(opts)
	case FlowAuthCode:
		return NewAuthCodeFlow(opts), nil
	default:
		return nil, fmt.Errorf("unknown authentication flow %q (supported: %v)", name, FlowNames)
	}
}
