package avatarbuilder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/setanarut/avatarbuilder/utils"
)

// DefaultColor fills the base layer when no color item is equipped and the
// color table has no entry for item 1.
const DefaultColor = "#003366"

// Item is one catalog entry.
type Item struct {
	ID   int
	Slot Slot
}

// Rule redirects a secret-capable pose to another frame when every
// condition matches the model. Conditions hold Model.Value forms.
type Rule struct {
	Conditions map[Slot]string
	Frame      int
}

// Catalog holds the static lookup tables a request is resolved against.
type Catalog struct {
	items        map[int]Item
	colors       map[int]color.NRGBA
	secret       map[int][]Rule
	defaultColor color.NRGBA
}

// NewCatalog builds a catalog from in-memory tables. Invalid colors are dropped.
func NewCatalog(items []Item, colors map[int]string, secret map[int][]Rule) *Catalog {
	c := &Catalog{
		items:  make(map[int]Item, len(items)),
		colors: make(map[int]color.NRGBA, len(colors)),
		secret: secret,
	}
	for _, it := range items {
		c.items[it.ID] = it
	}
	for id, hex := range colors {
		if col, err := utils.ParseHexColor(hex); err == nil {
			c.colors[id] = col
		}
	}
	if c.secret == nil {
		c.secret = map[int][]Rule{}
	}
	c.defaultColor, _ = utils.ParseHexColor(DefaultColor)
	if col, ok := c.colors[1]; ok {
		c.defaultColor = col
	}
	return c
}

// LoadCatalog reads the item, color and secret frame tables. Each file may be
// JSON or YAML, chosen by extension. The secret frame table is optional.
func LoadCatalog(itemsPath, colorsPath, secretPath string) (*Catalog, error) {
	var rawItems map[string]struct {
		Type string `json:"type" yaml:"type"`
	}
	if err := decodeFile(itemsPath, &rawItems); err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	var rawColors map[string]string
	if err := decodeFile(colorsPath, &rawColors); err != nil {
		return nil, fmt.Errorf("load colors: %w", err)
	}
	var rawSecret map[string][]map[string]any
	if secretPath != "" {
		if err := decodeFile(secretPath, &rawSecret); err != nil {
			return nil, fmt.Errorf("load secret frames: %w", err)
		}
	}

	items := make([]Item, 0, len(rawItems))
	for key, v := range rawItems {
		id, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		slot, ok := ParseSlot(v.Type)
		if !ok {
			continue
		}
		items = append(items, Item{ID: id, Slot: slot})
	}
	colors := make(map[int]string, len(rawColors))
	for key, hex := range rawColors {
		if id, err := strconv.Atoi(key); err == nil {
			colors[id] = hex
		}
	}
	c := NewCatalog(items, colors, nil)

	for key, list := range rawSecret {
		pose, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("secret frames: pose key %q: %w", key, err)
		}
		for i, raw := range list {
			rule, err := c.parseRule(raw)
			if err != nil {
				return nil, fmt.Errorf("secret frames: pose %d rule %d: %w", pose, i, err)
			}
			c.secret[pose] = append(c.secret[pose], rule)
		}
	}
	return c, nil
}

func (c *Catalog) parseRule(raw map[string]any) (Rule, error) {
	rule := Rule{Conditions: make(map[Slot]string)}
	for key, v := range raw {
		value := scalarString(v)
		if key == "secret_frame" {
			frame, err := strconv.Atoi(value)
			if err != nil {
				return Rule{}, fmt.Errorf("secret_frame %q: %w", value, err)
			}
			rule.Frame = frame
			continue
		}
		slot, ok := ParseSlot(key)
		if !ok {
			return Rule{}, fmt.Errorf("unknown slot %q", key)
		}
		switch {
		case slot == SlotColor:
			value = c.colorValue(value)
		case value == "0":
			// Zero is the empty slot.
			value = ""
		}
		rule.Conditions[slot] = value
	}
	if rule.Frame == 0 {
		return Rule{}, fmt.Errorf("missing secret_frame")
	}
	return rule, nil
}

// colorValue normalizes a color condition given either as a color item id
// or as a hex string.
func (c *Catalog) colorValue(v string) string {
	if id, err := strconv.Atoi(v); err == nil {
		if col, ok := c.colors[id]; ok {
			return utils.HexColor(col)
		}
	}
	if col, err := utils.ParseHexColor(v); err == nil {
		return utils.HexColor(col)
	}
	return v
}

// Rules returns the secret frame rules for pose, in table order.
func (c *Catalog) Rules(pose int) []Rule {
	return c.secret[pose]
}

// Resolve builds the avatar model for a comma-separated item list. Unknown
// ids, and color items missing from the color table, are ignored. A non-empty
// customColor replaces the color slot.
func (c *Catalog) Resolve(items string, customColor string) (Model, error) {
	m := Model{}
	m.Appearance.Color = c.defaultColor
	for _, raw := range strings.Split(items, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		item, ok := c.items[id]
		if !ok {
			continue
		}
		if item.Slot == SlotColor {
			if col, ok := c.colors[id]; ok {
				m.Appearance.Color = col
			}
			continue
		}
		m = m.withAsset(item.Slot, id)
	}
	if strings.TrimSpace(customColor) != "" {
		col, err := utils.ParseHexColor(customColor)
		if err != nil {
			return Model{}, fmt.Errorf("%w: %w", ErrInvalidColor, err)
		}
		m.Appearance.Color = col
	}
	return m, nil
}

func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, v)
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		return dec.Decode(v)
	}
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
