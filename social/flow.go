package social

import (
	"context"
	"errors"
	"fmt"
	"time"

	accounts "github.com/fitstack/go-accounts"
)

// Flow orchestrates the OAuth login round trip: hand out a provider
// redirect with a signed state, then turn the callback into a session.
type Flow struct {
	providers    map[string]Provider
	stateManager StateManager
	linker       *Linker
	codec        *accounts.TokenCodec
	config       FlowConfig
	logger       accounts.Logger
}

// FlowConfig configures the OAuth flow.
type FlowConfig struct {
	DefaultRedirectURL string
	StateEncryptionKey []byte
	StateHMACKey       []byte
	StateTTL           time.Duration
}

// FlowOption configures the flow.
type FlowOption func(*Flow)

// NewFlow creates an OAuth flow over the given linker and token codec.
func NewFlow(linker *Linker, codec *accounts.TokenCodec, config FlowConfig, opts ...FlowOption) *Flow {
	cfg := config
	if cfg.StateTTL == 0 {
		cfg.StateTTL = 10 * time.Minute
	}

	f := &Flow{
		providers: make(map[string]Provider),
		linker:    linker,
		codec:     codec,
		config:    cfg,
		logger:    accounts.DefaultLogger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}

	if f.stateManager == nil {
		f.stateManager = NewEncryptedStateManager(
			cfg.StateEncryptionKey,
			cfg.StateHMACKey,
			cfg.StateTTL,
		)
	}

	return f
}

// WithProvider registers a provider.
func WithProvider(provider Provider) FlowOption {
	return func(f *Flow) {
		if provider == nil {
			return
		}
		f.providers[provider.Name()] = provider
	}
}

// WithStateManager sets a custom state manager.
func WithStateManager(sm StateManager) FlowOption {
	return func(f *Flow) {
		f.stateManager = sm
	}
}

// WithFlowLogger sets the flow logger.
func WithFlowLogger(logger accounts.Logger) FlowOption {
	return func(f *Flow) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// AuthRedirect carries the authorization URL for redirecting the caller.
type AuthRedirect struct {
	URL      string
	State    string
	Provider string
}

// FlowResult is the outcome of a completed callback.
type FlowResult struct {
	Account     *accounts.Account
	Token       string
	Created     bool
	Linked      bool
	Provider    string
	RedirectURL string
}

// BeginAuth starts the OAuth flow for a provider.
func (f *Flow) BeginAuth(ctx context.Context, providerName, redirectURL string) (*AuthRedirect, error) {
	provider, ok := f.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerName)
	}

	if redirectURL == "" {
		redirectURL = f.config.DefaultRedirectURL
	}

	state := &OAuthState{
		Nonce:       generateNonce(),
		Provider:    providerName,
		RedirectURL: redirectURL,
		IssuedAt:    time.Now().Unix(),
		ExpiresAt:   time.Now().Add(f.config.StateTTL).Unix(),
	}

	stateToken, err := f.stateManager.Encode(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}

	return &AuthRedirect{
		URL:      provider.AuthCodeURL(stateToken),
		State:    stateToken,
		Provider: providerName,
	}, nil
}

// Callback finishes the OAuth flow. Provider failures surface as
// ErrExternalAuthFailed before any account is touched.
func (f *Flow) Callback(ctx context.Context, providerName, code, stateToken string) (*FlowResult, error) {
	state, err := f.stateManager.Decode(stateToken)
	if err != nil {
		if errors.Is(err, ErrStateExpired) {
			return nil, ErrStateExpired
		}
		return nil, ErrInvalidState
	}

	if state.Provider != providerName {
		return nil, ErrInvalidState
	}

	provider, ok := f.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerName)
	}

	token, err := provider.Exchange(ctx, code)
	if err != nil {
		f.logger.Warn("code exchange with %s failed: %v", providerName, err)
		return nil, ErrExternalAuthFailed
	}

	identity, err := provider.VerifyIdentity(ctx, token)
	if err != nil {
		f.logger.Warn("identity verification with %s failed: %v", providerName, err)
		return nil, ErrExternalAuthFailed
	}

	resolved, err := f.linker.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}

	signed, err := f.codec.SignAssertion(resolved.Account.ID, resolved.Account.Role, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to sign assertion: %w", err)
	}

	return &FlowResult{
		Account:     resolved.Account,
		Token:       signed,
		Created:     resolved.Created,
		Linked:      resolved.Linked,
		Provider:    providerName,
		RedirectURL: state.RedirectURL,
	}, nil
}

// Providers returns the names of all registered providers.
func (f *Flow) Providers() []string {
	names := make([]string, 0, len(f.providers))
	for name := range f.providers {
		names = append(names, name)
	}
	return names
}
