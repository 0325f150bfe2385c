package notify

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/CosmoTheDev/tasknotify/models"
)

// Registry maps provider type strings to implementations. New channels are
// added by registering them here; the router needs no change.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry returns a Registry holding providers. Later duplicates of a type
// replace earlier ones.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Type()] = p
	}
	return r
}

// Options tunes the built-in providers.
type Options struct {
	// HTTPClient is used by the HTTP based providers. Defaults to a client with
	// a 10 second timeout.
	HTTPClient *http.Client
	// TelegramAPIURL overrides the Bot API base URL.
	TelegramAPIURL string
}

// DefaultRegistry returns a Registry with the built-in channels:
// slack, telegram, email and webhook.
func DefaultRegistry(opts Options) *Registry {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return NewRegistry(
		NewSlack(client),
		NewTelegram(client, opts.TelegramAPIURL),
		NewEmail(),
		NewWebhook(client),
	)
}

// Register adds p. Registering a type twice is an error.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[p.Type()]; exists {
		return fmt.Errorf("notify: provider %q already registered", p.Type())
	}
	r.providers[p.Type()] = p
	return nil
}

// Get returns the provider registered for providerType.
func (r *Registry) Get(providerType string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[providerType]
	return p, ok
}

// Types returns the registered provider types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.providers))
	for t := range r.providers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Validate checks cfg with the provider registered for cfg.Type.
func (r *Registry) Validate(cfg models.ProviderConfig) models.ValidationResult {
	p, ok := r.Get(cfg.Type)
	if !ok {
		return models.Invalid(fmt.Sprintf("unknown provider type %q", cfg.Type))
	}
	return p.Validate(cfg)
}
