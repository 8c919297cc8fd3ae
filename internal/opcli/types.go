package opcli

import (
	"fmt"
	"strings"
)

// Vault is an entry of `op vault list`.
type Vault struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ItemSummary is an entry of `op item list`.
type ItemSummary struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Category string   `json:"category"`
	Tags     []string `json:"tags,omitempty"`
	Vault    Vault    `json:"vault"`
}

// Item is the full JSON form of `op item get`.
type Item struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Category string   `json:"category"`
	Notes    string   `json:"notes,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Vault    Vault    `json:"vault"`
	Fields   []Field  `json:"fields"`
	URLs     []URL    `json:"urls,omitempty"`
}

// Field is one field of an Item.
type Field struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Purpose string `json:"purpose,omitempty"`
	Label   string `json:"label"`
	Value   string `json:"value"`
}

// URL is one website of an Item.
type URL struct {
	Label   string `json:"label"`
	Primary bool   `json:"primary"`
	Href    string `json:"href"`
}

// Field returns the value of the field with the given label or id. The
// names password, username, url, notes and title fall back to the field
// that plays that role.
func (it *Item) Field(name string) (string, error) {
	for _, f := range it.Fields {
		if f.Label == name || f.ID == name {
			return f.Value, nil
		}
	}

	switch strings.ToLower(name) {
	case "password":
		for _, f := range it.Fields {
			if f.Purpose == "PASSWORD" || f.Type == "CONCEALED" {
				return f.Value, nil
			}
		}
	case "username":
		for _, f := range it.Fields {
			if f.Purpose == "USERNAME" || strings.EqualFold(f.Label, "email") {
				return f.Value, nil
			}
		}
	case "url", "website":
		if len(it.URLs) > 0 {
			return it.URLs[0].Href, nil
		}
	case "notes":
		return it.Notes, nil
	case "title", "name":
		return it.Title, nil
	}

	return "", fmt.Errorf("%w: field %q in item %q", ErrNotFound, name, it.Title)
}
