// Package promptreg adapts the Prompt Registry boundary (C3): prompt
// resolution by (name, version|label), an in-process TTL cache fronting the
// registry HTTP call, single-flighted per key, with `{{var}}` interpolation
// and a built-in fallback prompt table so C6/C8 never block on the registry
// being unreachable.
package promptreg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL is the cache lifetime for a resolved prompt under any label
// other than "production".
const DefaultTTL = 60 * time.Second

// ProductionTTL is the longer cache lifetime used for prompts resolved
// under the "production" label, trading staleness for fewer registry calls
// on the hot path.
const ProductionTTL = 6 * time.Minute

// Template is a resolved prompt: its raw body plus the version/label it
// was fetched under.
type Template struct {
	Name    string
	Version string
	Body    string
}

type cacheEntry struct {
	tmpl      Template
	expiresAt time.Time
}

// Registry resolves named prompts from an HTTP-backed prompt registry,
// caching results in-process and collapsing concurrent fetches for the
// same key via singleflight.
type Registry struct {
	baseURL   string
	client    *http.Client
	fallbacks map[string]string

	mu    sync.RWMutex
	cache map[string]cacheEntry
	group singleflight.Group
}

// NewRegistry builds a Registry against baseURL. fallbacks supplies
// built-in prompt bodies keyed by name, used when the registry is
// unreachable or returns an error.
func NewRegistry(baseURL string, fallbacks map[string]string) *Registry {
	return &Registry{
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		fallbacks: fallbacks,
		cache:     make(map[string]cacheEntry),
	}
}

func cacheKey(name, label string) string {
	return name + "@" + label
}

func ttlFor(label string) time.Duration {
	if label == "production" {
		return ProductionTTL
	}
	return DefaultTTL
}

// Resolve fetches the named prompt under the given label ("" means the
// registry's default label), serving from cache when fresh, falling back
// to the built-in table when the registry call fails.
func (r *Registry) Resolve(ctx context.Context, name, label string) (Template, error) {
	key := cacheKey(name, label)

	r.mu.RLock()
	entry, ok := r.cache[key]
	r.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.tmpl, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		tmpl, ferr := r.fetch(ctx, name, label)
		if ferr != nil {
			if fallback, has := r.fallbacks[name]; has {
				slog.Warn("promptreg: using fallback prompt", "name", name, "label", label, "error", ferr)
				return Template{Name: name, Version: "fallback", Body: fallback}, nil
			}
			return Template{}, ferr
		}

		r.mu.Lock()
		r.cache[key] = cacheEntry{tmpl: tmpl, expiresAt: time.Now().Add(ttlFor(label))}
		r.mu.Unlock()
		return tmpl, nil
	})
	if err != nil {
		return Template{}, fmt.Errorf("promptreg: resolve %q: %w", name, err)
	}
	return v.(Template), nil
}

type registryResponse struct {
	Version string `json:"version"`
	Body    string `json:"body"`
}

func (r *Registry) fetch(ctx context.Context, name, label string) (Template, error) {
	url := fmt.Sprintf("%s/prompts/%s", r.baseURL, name)
	if label != "" {
		url += "?label=" + label
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, bytes.NewReader(nil))
	if err != nil {
		return Template{}, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Template{}, fmt.Errorf("prompt registry unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Template{}, fmt.Errorf("prompt registry: status %d", resp.StatusCode)
	}

	var body registryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Template{}, fmt.Errorf("prompt registry decode: %w", err)
	}

	return Template{Name: name, Version: body.Version, Body: body.Body}, nil
}

// Render interpolates `{{var}}` placeholders in the template body with
// vars. A placeholder with no matching entry in vars is left intact and
// its name is returned in unresolved, per the spec's
// left-intact-plus-warning semantics.
func Render(body string, vars map[string]string) (rendered string, unresolved []string) {
	var out strings.Builder
	i := 0
	for i < len(body) {
		start := strings.Index(body[i:], "{{")
		if start < 0 {
			out.WriteString(body[i:])
			break
		}
		start += i
		out.WriteString(body[i:start])

		end := strings.Index(body[start:], "}}")
		if end < 0 {
			out.WriteString(body[start:])
			break
		}
		end += start

		name := strings.TrimSpace(body[start+2 : end])
		if val, ok := vars[name]; ok {
			out.WriteString(val)
		} else {
			out.WriteString(body[start : end+2])
			unresolved = append(unresolved, name)
		}
		i = end + 2
	}
	return out.String(), unresolved
}
