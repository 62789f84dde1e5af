// Package rewards holds the fixed reward catalog and the redemption engine that trades
// loyalty points for catalog entries.
package rewards

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/Skotchmaster/storefront/internal/models"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog is immutable once parsed.
type Catalog struct {
	rewards []models.Reward
	byID    map[int]int
}

type catalogFile struct {
	Rewards []models.Reward `yaml:"rewards"`
}

func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// MustDefaultCatalog panics if the embedded catalog is broken; that is a build defect.
func MustDefaultCatalog() *Catalog {
	c, err := DefaultCatalog()
	if err != nil {
		panic(err)
	}
	return c
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing reward catalog: %w", err)
	}
	if len(f.Rewards) == 0 {
		return nil, fmt.Errorf("reward catalog is empty")
	}

	c := &Catalog{byID: make(map[int]int, len(f.Rewards))}
	for i, r := range f.Rewards {
		if _, dup := c.byID[r.ID]; dup {
			return nil, fmt.Errorf("reward %d: duplicate id", r.ID)
		}
		if r.Name == "" {
			return nil, fmt.Errorf("reward %d: name is required", r.ID)
		}
		if r.Points <= 0 {
			return nil, fmt.Errorf("reward %d: point cost must be positive", r.ID)
		}
		if !r.Type.Valid() {
			return nil, fmt.Errorf("reward %d: unknown type %q", r.ID, r.Type)
		}
		if r.Type == models.RewardVoucher && r.Value <= 0 {
			return nil, fmt.Errorf("reward %d: voucher needs a value", r.ID)
		}
		c.byID[r.ID] = i
	}
	c.rewards = f.Rewards
	return c, nil
}

// All returns the catalog in display order.
func (c *Catalog) All() []models.Reward {
	out := make([]models.Reward, len(c.rewards))
	copy(out, c.rewards)
	return out
}

func (c *Catalog) Find(id int) (models.Reward, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.Reward{}, false
	}
	return c.rewards[i], true
}

func (c *Catalog) Len() int {
	return len(c.rewards)
}
