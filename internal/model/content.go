package model

// Content is the desired state of a representation as produced by a
// renderer. The engine never inspects it beyond computing a Digest.
type Content struct {
	Text       string      `json:"text,omitempty" yaml:"text,omitempty"`
	Embeds     []Embed     `json:"embeds,omitempty" yaml:"embeds,omitempty"`
	Components []Component `json:"components,omitempty" yaml:"components,omitempty"`

	// Tag is the identity tag the transport embeds in the representation's
	// metadata. Set by the engine, excluded from the digest.
	Tag string `json:"tag,omitempty" yaml:"tag,omitempty"`

	// SendAs asks the transport to post under another identity. Only
	// honoured on create; excluded from the digest.
	SendAs Persona `json:"send_as,omitempty" yaml:"send_as,omitempty"`
}

// Persona is a display identity for a representation.
type Persona struct {
	Username  string `json:"username,omitempty" yaml:"username,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty" yaml:"avatar_url,omitempty"`
}

// IsZero reports whether no identity override is set.
func (p Persona) IsZero() bool {
	return p.Username == "" && p.AvatarURL == ""
}

// Embed is rich-embed data.
type Embed struct {
	Author      string  `json:"author,omitempty" yaml:"author,omitempty"`
	AuthorIcon  string  `json:"author_icon,omitempty" yaml:"author_icon,omitempty"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Image       string  `json:"image,omitempty" yaml:"image,omitempty"`
	Footer      string  `json:"footer,omitempty" yaml:"footer,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Color       int     `json:"color,omitempty" yaml:"color,omitempty"`
	Fields      []Field `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Field is a named embed field.
type Field struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Component is an interactive link button.
type Component struct {
	Label string `json:"label" yaml:"label"`
	URL   string `json:"url" yaml:"url"`
}

// canonicalMap converts content to plain values accepted by MarshalCanonical.
// Empty fields are omitted so that adding an optional field later does not
// change existing digests.
func (c Content) canonicalMap() map[string]any {
	m := map[string]any{}
	if c.Text != "" {
		m["text"] = c.Text
	}
	if len(c.Embeds) > 0 {
		embeds := make([]any, len(c.Embeds))
		for i, e := range c.Embeds {
			embeds[i] = e.canonicalMap()
		}
		m["embeds"] = embeds
	}
	if len(c.Components) > 0 {
		comps := make([]any, len(c.Components))
		for i, comp := range c.Components {
			comps[i] = map[string]any{"label": comp.Label, "url": comp.URL}
		}
		m["components"] = comps
	}
	return m
}

func (e Embed) canonicalMap() map[string]any {
	m := map[string]any{}
	put := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	put("author", e.Author)
	put("author_icon", e.AuthorIcon)
	put("description", e.Description)
	put("image", e.Image)
	put("footer", e.Footer)
	put("timestamp", e.Timestamp)
	if e.Color != 0 {
		m["color"] = int64(e.Color)
	}
	if len(e.Fields) > 0 {
		fields := make([]any, len(e.Fields))
		for i, f := range e.Fields {
			fields[i] = map[string]any{"name": f.Name, "value": f.Value}
		}
		m["fields"] = fields
	}
	return m
}
