package avatarbuilder

import (
	"image/color"
	"strconv"
	"strings"

	"github.com/setanarut/avatarbuilder/utils"
)

// Slot is one equippable position on the avatar.
type Slot int

const (
	SlotPhoto Slot = iota
	SlotPin
	SlotColor
	SlotFeet
	SlotBody
	SlotNeck
	SlotHand
	SlotFace
	SlotHead
)

var slotNames = [...]string{"photo", "pin", "color", "feet", "body", "neck", "hand", "face", "head"}

// visualSlots is the render order, bottom to top.
var visualSlots = [...]Slot{SlotColor, SlotFeet, SlotBody, SlotNeck, SlotHand, SlotFace, SlotHead}

func (s Slot) String() string {
	if s < 0 || int(s) >= len(slotNames) {
		return "slot(" + strconv.Itoa(int(s)) + ")"
	}
	return slotNames[s]
}

// Transient reports whether the slot is dropped before rendering.
func (s Slot) Transient() bool {
	return s == SlotPhoto || s == SlotPin
}

// ParseSlot resolves a catalog type name. "background" and "flag" are
// accepted as older names for photo and pin.
func ParseSlot(name string) (Slot, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "background":
		return SlotPhoto, true
	case "flag":
		return SlotPin, true
	}
	for i, n := range slotNames {
		if n == name {
			return Slot(i), true
		}
	}
	return 0, false
}

// Transient holds the slots that never render.
type Transient struct {
	Photo int
	Pin   int
}

// Appearance holds the rendering slots. Zero means empty.
type Appearance struct {
	Color color.NRGBA
	Feet  int
	Body  int
	Neck  int
	Hand  int
	Face  int
	Head  int
}

// Model is the resolved avatar for one request. It is a value; resolution
// builds a new one rather than editing a shared instance.
type Model struct {
	Transient  Transient
	Appearance Appearance
}

// Value returns the slot's comparable form: the item id for asset slots,
// rrggbb for the color slot, "" when the slot is empty.
func (m Model) Value(s Slot) string {
	if s == SlotColor {
		return utils.HexColor(m.Appearance.Color)
	}
	id := m.asset(s)
	if id == 0 {
		return ""
	}
	return strconv.Itoa(id)
}

func (m Model) asset(s Slot) int {
	switch s {
	case SlotPhoto:
		return m.Transient.Photo
	case SlotPin:
		return m.Transient.Pin
	case SlotFeet:
		return m.Appearance.Feet
	case SlotBody:
		return m.Appearance.Body
	case SlotNeck:
		return m.Appearance.Neck
	case SlotHand:
		return m.Appearance.Hand
	case SlotFace:
		return m.Appearance.Face
	case SlotHead:
		return m.Appearance.Head
	}
	return 0
}

func (m Model) withAsset(s Slot, id int) Model {
	switch s {
	case SlotPhoto:
		m.Transient.Photo = id
	case SlotPin:
		m.Transient.Pin = id
	case SlotFeet:
		m.Appearance.Feet = id
	case SlotBody:
		m.Appearance.Body = id
	case SlotNeck:
		m.Appearance.Neck = id
	case SlotHand:
		m.Appearance.Hand = id
	case SlotFace:
		m.Appearance.Face = id
	case SlotHead:
		m.Appearance.Head = id
	}
	return m
}

// Layers returns the render stack: the color layer first, then every
// non-empty visual asset slot in slot order. Transient slots never appear.
func (m Model) Layers() Stack {
	stack := Stack{ColorLayer(m.Appearance.Color)}
	for _, s := range visualSlots[1:] {
		if id := m.asset(s); id != 0 {
			stack = append(stack, AssetLayer(id))
		}
	}
	return stack
}

// LayerKind tells the two layer variants apart.
type LayerKind int

const (
	KindColor LayerKind = iota
	KindAsset
)

// Layer is one visual contribution to a frame. Its kind is fixed when it is
// created by ColorLayer or AssetLayer.
type Layer struct {
	kind  LayerKind
	asset int
	color color.NRGBA
}

func ColorLayer(c color.NRGBA) Layer {
	c.A = 255
	return Layer{kind: KindColor, color: c}
}

func AssetLayer(id int) Layer {
	return Layer{kind: KindAsset, asset: id}
}

func (l Layer) Kind() LayerKind { return l.kind }

// Asset returns the item id of an asset layer.
func (l Layer) Asset() (int, bool) {
	return l.asset, l.kind == KindAsset
}

// Color returns the fill of a color layer.
func (l Layer) Color() (color.NRGBA, bool) {
	return l.color, l.kind == KindColor
}

// String is the layer's fingerprint token. Color tokens carry a "c" prefix so
// they can never collide with a numeric item id.
func (l Layer) String() string {
	if l.kind == KindColor {
		return "c" + utils.HexColor(l.color)
	}
	return strconv.Itoa(l.asset)
}

// Stack is an ordered list of layers, bottom first.
type Stack []Layer

// Fingerprint joins the layer tokens into the cache key.
func (s Stack) Fingerprint() string {
	parts := make([]string, len(s))
	for i, l := range s {
		parts[i] = l.String()
	}
	return strings.Join(parts, "_")
}

// Base returns the bottom color layer's fill, if the stack has one.
func (s Stack) Base() (color.NRGBA, bool) {
	if len(s) == 0 {
		return color.NRGBA{}, false
	}
	return s[0].Color()
}
