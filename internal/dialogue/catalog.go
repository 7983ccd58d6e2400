package dialogue

import (
	"errors"
	"fmt"
	"os"

	"consultdesk/internal/models"

	"gopkg.in/yaml.v2"
)

const (
	ServiceBrandStrategy = "brand-strategy"
	ServiceLogoDesign    = "logo-design"
	ServiceSocialMedia   = "social-media"
	ServiceVideoMotion   = "video-motion"
)

var defaultServices = []models.Service{
	{
		Key:         ServiceBrandStrategy,
		Name:        "Brand Strategy & Development",
		Description: "Complete brand identity creation, positioning, and market strategy to establish your unique presence.",
		Keywords:    []string{"brand identity", "positioning", "strategy", "rebrand"},
	},
	{
		Key:         ServiceLogoDesign,
		Name:        "Logo & Visual Identity Design",
		Description: "Custom logo design and complete visual identity systems that capture your brand essence.",
		Keywords:    []string{"logo", "visual identity", "design", "branding"},
	},
	{
		Key:         ServiceSocialMedia,
		Name:        "Social Media Management",
		Description: "Full social media strategy, content creation, and community management to grow your online presence.",
		Keywords:    []string{"social media", "instagram", "facebook", "content", "posts"},
	},
	{
		Key:         ServiceVideoMotion,
		Name:        "Video & Motion Graphics",
		Description: "Professional video production and motion graphics that bring your brand story to life.",
		Keywords:    []string{"video", "motion graphics", "animation", "production"},
	},
}

var ErrUnknownService = errors.New("unknown service")

// Catalog is the read-only, ordered list of services.
type Catalog struct {
	services []models.Service
	byKey    map[string]models.Service
}

func NewCatalog(services []models.Service) (*Catalog, error) {
	if len(services) == 0 {
		return nil, errors.New("catalog has no services")
	}
	c := &Catalog{byKey: make(map[string]models.Service, len(services))}
	for _, s := range services {
		if s.Key == "" || s.Name == "" {
			return nil, fmt.Errorf("service %q: key and name are required", s.Key)
		}
		if _, dup := c.byKey[s.Key]; dup {
			return nil, fmt.Errorf("duplicate service key %q", s.Key)
		}
		c.byKey[s.Key] = s
		c.services = append(c.services, s)
	}
	return c, nil
}

// DefaultCatalog returns the built-in four services.
func DefaultCatalog() *Catalog {
	c, _ := NewCatalog(defaultServices)
	return c
}

type catalogFile struct {
	Services []models.Service `yaml:"services"`
}

// LoadCatalog reads a services file; an empty path yields the default
// catalog. The script refers to the built-in keys, so an override must keep
// them.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read services file: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse services file: %w", err)
	}
	c, err := NewCatalog(f.Services)
	if err != nil {
		return nil, err
	}
	for _, s := range defaultServices {
		if _, ok := c.byKey[s.Key]; !ok {
			return nil, fmt.Errorf("services file is missing %q", s.Key)
		}
	}
	return c, nil
}

func (c *Catalog) All() []models.Service {
	out := make([]models.Service, len(c.services))
	copy(out, c.services)
	return out
}

func (c *Catalog) Get(key string) (models.Service, error) {
	s, ok := c.byKey[key]
	if !ok {
		return models.Service{}, fmt.Errorf("%w: %q", ErrUnknownService, key)
	}
	return s, nil
}

func (c *Catalog) pick(keys ...string) []models.Service {
	out := make([]models.Service, 0, len(keys))
	for _, k := range keys {
		if s, ok := c.byKey[k]; ok {
			out = append(out, s)
		}
	}
	return out
}
