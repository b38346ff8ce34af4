// Package content is the D&D 5e SRD content client, used to tag
// GM-invented combatants with known monster keys.
package content

//go:generate mockgen -destination=mock/mock_client.go -package=contentmock github.com/KirkDiggler/gamemaster-api/internal/clients/content Client

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fadedpez/dnd5e-api/clients/dnd5e"
	apientities "github.com/fadedpez/dnd5e-api/entities"

	"github.com/KirkDiggler/gamemaster-api/internal/errors"
)

// Client resolves free-form monster names to SRD content keys
type Client interface {
	ResolveMonsterKey(ctx context.Context, name string) (string, error)
}

// monsterAPI is the slice of dnd5e.Interface this client consumes
type monsterAPI interface {
	ListMonsters() ([]*apientities.ReferenceItem, error)
}

type client struct {
	api monsterAPI

	mu    sync.Mutex
	index map[string]string // lowercased name -> key
}

// Config contains configuration options for the content client
type Config struct {
	// BaseURL for the D&D 5e API (optional, defaults to https://www.dnd5eapi.co/api/2014/)
	BaseURL string
	// HTTPTimeout for API requests (optional, defaults to 30 seconds)
	HTTPTimeout time.Duration
	// CacheTTL for the cached client (optional, defaults to 24 hours)
	CacheTTL time.Duration
}

// Validate validates the Config and sets defaults if not provided
func (cfg *Config) Validate() error {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.dnd5eapi.co/api/2014/"
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	return nil
}

// New creates a content client backed by the D&D 5e API
func New(cfg *Config) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	baseClient, err := dnd5e.NewDND5eAPI(&dnd5e.DND5eAPIConfig{
		Client:  httpClient,
		BaseURL: cfg.BaseURL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create D&D 5e API client")
	}

	return &client{
		api: dnd5e.NewCachedClient(baseClient, cfg.CacheTTL),
	}, nil
}

var slugPattern = regexp.MustCompile(`[^a-z0-9-]+`)

// slugify normalizes a name the way SRD keys are formed,
// e.g. "Adult Red Dragon" -> "adult-red-dragon"
func slugify(s string) string {
	slug := strings.ToLower(strings.TrimSpace(s))
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = slugPattern.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	return regexp.MustCompile(`-+`).ReplaceAllString(slug, "-")
}

// ResolveMonsterKey matches a name against the SRD monster list,
// case-insensitively on the name and by slug on the key
func (c *client) ResolveMonsterKey(_ context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.InvalidArgument("monster name is required")
	}

	index, err := c.monsterIndex()
	if err != nil {
		return "", errors.Wrap(err, "failed to list monsters")
	}

	if key, ok := index[strings.ToLower(strings.TrimSpace(name))]; ok {
		return key, nil
	}
	if key, ok := index[slugify(name)]; ok {
		return key, nil
	}

	return "", errors.NotFoundf("no SRD monster matches %q", name)
}

func (c *client) monsterIndex() (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.index != nil {
		return c.index, nil
	}

	refs, err := c.api.ListMonsters()
	if err != nil {
		return nil, err
	}

	index := make(map[string]string, len(refs)*2)
	for _, ref := range refs {
		if ref == nil {
			continue
		}
		index[strings.ToLower(ref.Name)] = ref.Key
		index[ref.Key] = ref.Key
	}
	c.index = index
	return index, nil
}
