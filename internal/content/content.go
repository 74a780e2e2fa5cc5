package content

import "strings"

// Kind identifies which store an item was drawn from.
type Kind string

const (
	KindText  Kind = "text"
	KindMedia Kind = "media"
)

// TextUnit is one stored excerpt. Group bounds contiguous sampling.
type TextUnit struct {
	Text      string `json:"text"`
	Reference string `json:"reference"`
	Group     string `json:"group"`
}

// Valid reports whether the unit carries enough data to be stored.
func (u TextUnit) Valid() bool {
	return strings.TrimSpace(u.Text) != "" &&
		strings.TrimSpace(u.Reference) != "" &&
		strings.TrimSpace(u.Group) != ""
}

// TextGroup is a merged run of consecutive units from a single group.
type TextGroup struct {
	Text      string `json:"text"`
	Reference string `json:"reference"`
	Group     string `json:"group"`
	Units     int    `json:"units"`
}

// MediaRef is an opaque handle to a media object.
type MediaRef struct {
	ID      string `json:"id"`
	Locator string `json:"locator"`
	MIME    string `json:"mime,omitempty"`
	Size    int64  `json:"size,omitempty"`
}

// IsVideo reports whether the reference points at a video.
func (m MediaRef) IsVideo() bool {
	return strings.HasPrefix(m.MIME, "video/")
}

// Item is one drawn piece of content: exactly one of Text or Media is set.
type Item struct {
	Kind  Kind       `json:"kind"`
	Text  *TextGroup `json:"text,omitempty"`
	Media *MediaRef  `json:"media,omitempty"`
}

// TextItem wraps a text group as an Item.
func TextItem(g TextGroup) Item {
	return Item{Kind: KindText, Text: &g}
}

// MediaItem wraps a media reference as an Item.
func MediaItem(m MediaRef) Item {
	return Item{Kind: KindMedia, Media: &m}
}

// Label is a short human-readable description used in logs and history.
func (i Item) Label() string {
	switch {
	case i.Text != nil:
		return i.Text.Reference
	case i.Media != nil:
		return i.Media.Locator
	default:
		return ""
	}
}
