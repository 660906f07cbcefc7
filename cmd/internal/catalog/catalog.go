// Package catalog holds the immutable costume and achievement definitions loaded at boot.
//
// A Catalog is built once and only read afterwards, so it is shared across requests without locking.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultItem is owned by every account and is the initial active item.
const DefaultItem = "default"

// Kind distinguishes priced costumes from free achievements.
type Kind string

const (
	KindCostume     Kind = "costume"
	KindAchievement Kind = "achievement"
)

// Item is one catalog entry. Price is meaningful for costumes only.
type Item struct {
	Key         string
	Kind        Kind
	DisplayName string
	Description string
	Price       int64
}

type itemJSON struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Price       *int64 `json:"price,omitempty"`
}

// MarshalJSON emits price only for costumes.
func (it Item) MarshalJSON() ([]byte, error) {
	out := itemJSON{
		Name:        it.Key,
		DisplayName: it.DisplayName,
		Description: it.Description,
	}
	if it.Kind == KindCostume {
		p := it.Price
		out.Price = &p
	}
	return json.Marshal(out)
}

// UnknownItemError reports a key that is not in the catalog.
type UnknownItemError struct {
	Kind Kind
	Key  string
}

func (e UnknownItemError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Key)
}

// Catalog is the read-only item registry.
type Catalog struct {
	costumes     map[string]Item
	achievements map[string]Item

	costumeList     []Item
	achievementList []Item
}

// New validates items and builds a Catalog. At least one costume is required.
func New(costumes, achievements []Item) (*Catalog, error) {
	c := &Catalog{
		costumes:     make(map[string]Item, len(costumes)),
		achievements: make(map[string]Item, len(achievements)),
	}
	if len(costumes) == 0 {
		return nil, errors.New("catalog: no costumes provided")
	}
	if err := c.add(KindCostume, costumes, c.costumes); err != nil {
		return nil, err
	}
	if err := c.add(KindAchievement, achievements, c.achievements); err != nil {
		return nil, err
	}

	c.costumeList = sortedValues(c.costumes)
	c.achievementList = sortedValues(c.achievements)
	return c, nil
}

func (c *Catalog) add(kind Kind, items []Item, dst map[string]Item) error {
	for _, it := range items {
		it.Key = strings.TrimSpace(it.Key)
		it.Kind = kind
		switch {
		case it.Key == "":
			return fmt.Errorf("catalog: %s with empty key", kind)
		case it.DisplayName == "":
			return fmt.Errorf("catalog: %s %q: missing name", kind, it.Key)
		case it.Price < 0:
			return fmt.Errorf("catalog: %s %q: negative price", kind, it.Key)
		}
		if _, dup := dst[it.Key]; dup {
			return fmt.Errorf("catalog: duplicate %s %q", kind, it.Key)
		}
		dst[it.Key] = it
	}
	return nil
}

func sortedValues(m map[string]Item) []Item {
	out := make([]Item, 0, len(m))
	for _, it := range m {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Costume looks up a costume by key.
func (c *Catalog) Costume(key string) (Item, bool) {
	it, ok := c.costumes[key]
	return it, ok
}

// Achievement looks up an achievement by key.
func (c *Catalog) Achievement(key string) (Item, bool) {
	it, ok := c.achievements[key]
	return it, ok
}

// Costumes returns all costumes sorted by key.
func (c *Catalog) Costumes() []Item { return append([]Item(nil), c.costumeList...) }

// Achievements returns all achievements sorted by key.
func (c *Catalog) Achievements() []Item { return append([]Item(nil), c.achievementList...) }

// ResolveCostumes decodes stored costume keys into catalog items, preserving order.
// DefaultItem resolves only when the catalog defines it and is skipped otherwise.
func (c *Catalog) ResolveCostumes(keys []string) ([]Item, error) {
	out := make([]Item, 0, len(keys))
	for _, k := range keys {
		it, ok := c.costumes[k]
		if !ok {
			if k == DefaultItem {
				continue
			}
			return nil, UnknownItemError{Kind: KindCostume, Key: k}
		}
		out = append(out, it)
	}
	return out, nil
}

type rawItem struct {
	Name        *string `toml:"name"`
	Description *string `toml:"description"`
	Price       *int64  `toml:"price"`
}

type costumeFile struct {
	Costume map[string]rawItem `toml:"costume"`
}

type achievementFile struct {
	Achievement map[string]rawItem `toml:"achievement"`
}

// Load reads both catalog files. Any missing file, table or field is an error.
func Load(costumePath, achievementPath string) (*Catalog, error) {
	costumeData, err := os.ReadFile(costumePath)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", costumePath, err)
	}
	achievementData, err := os.ReadFile(achievementPath)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", achievementPath, err)
	}
	return Parse(string(costumeData), string(achievementData))
}

// Parse builds a Catalog from the TOML documents:
//
//	[costume.<key>]          [achievement.<key>]
//	name = "..."             name = "..."
//	description = "..."      description = "..."
//	price = 10
func Parse(costumeTOML, achievementTOML string) (*Catalog, error) {
	var cf costumeFile
	if _, err := toml.Decode(costumeTOML, &cf); err != nil {
		return nil, fmt.Errorf("catalog: parse costumes: %w", err)
	}
	if cf.Costume == nil {
		return nil, errors.New("catalog: no [costume] table provided")
	}

	var af achievementFile
	if _, err := toml.Decode(achievementTOML, &af); err != nil {
		return nil, fmt.Errorf("catalog: parse achievements: %w", err)
	}
	if af.Achievement == nil {
		return nil, errors.New("catalog: no [achievement] table provided")
	}

	costumes, err := toItems(KindCostume, cf.Costume, true)
	if err != nil {
		return nil, err
	}
	achievements, err := toItems(KindAchievement, af.Achievement, false)
	if err != nil {
		return nil, err
	}
	return New(costumes, achievements)
}

func toItems(kind Kind, raw map[string]rawItem, priced bool) ([]Item, error) {
	out := make([]Item, 0, len(raw))
	for key, r := range raw {
		if r.Name == nil {
			return nil, fmt.Errorf("catalog: %s %q: missing name", kind, key)
		}
		if r.Description == nil {
			return nil, fmt.Errorf("catalog: %s %q: missing description", kind, key)
		}
		it := Item{Key: key, DisplayName: *r.Name, Description: *r.Description}
		if priced {
			if r.Price == nil {
				return nil, fmt.Errorf("catalog: %s %q: missing price", kind, key)
			}
			it.Price = *r.Price
		}
		out = append(out, it)
	}
	return out, nil
}
