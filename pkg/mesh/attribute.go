package mesh

import "strconv"

// AttributeKind tags one vertex attribute writer.
type AttributeKind uint8

const (
	AttrPosition AttributeKind = iota
	AttrNormal
	AttrTangent
	AttrColor
	AttrTexCoord
)

// Attribute is a single per-vertex attribute. Channel is only meaningful for colors and texcoords.
type Attribute struct {
	Kind    AttributeKind
	Channel int
}

// Name is the stable buffer name used for planar buffers and cooked stream keys.
func (a Attribute) Name() string {
	switch a.Kind {
	case AttrPosition:
		return "Position"
	case AttrNormal:
		return "Normal"
	case AttrTangent:
		return "Tangent"
	case AttrColor:
		return "Color" + strconv.Itoa(a.Channel)
	case AttrTexCoord:
		return "TexCoord" + strconv.Itoa(a.Channel)
	}
	return "Unknown"
}

// Components returns the number of float32 components.
func (a Attribute) Components() int {
	switch a.Kind {
	case AttrColor:
		return 4
	case AttrTexCoord:
		return 2
	default:
		return 3
	}
}

// Size returns the packed size in bytes.
func (a Attribute) Size() int {
	return a.Components() * 4
}

// AttributeSet describes which attributes a mesh carries.
type AttributeSet struct {
	HasNormals  bool
	HasTangents bool
	Colors      int
	TexCoords   int
}

// List returns the attributes in packing order: position, normal, tangent, colors, texcoords.
func (s AttributeSet) List() []Attribute {
	out := make([]Attribute, 0, 3+s.Colors+s.TexCoords)
	out = append(out, Attribute{Kind: AttrPosition})
	if s.HasNormals {
		out = append(out, Attribute{Kind: AttrNormal})
	}
	if s.HasTangents {
		out = append(out, Attribute{Kind: AttrTangent})
	}
	for i := 0; i < s.Colors; i++ {
		out = append(out, Attribute{Kind: AttrColor, Channel: i})
	}
	for i := 0; i < s.TexCoords; i++ {
		out = append(out, Attribute{Kind: AttrTexCoord, Channel: i})
	}
	return out
}

// DetectAttributes returns the union of attributes present on any vertex.
// Vertices missing an attribute others carry are written as zero.
func DetectAttributes(vertices []Vertex) AttributeSet {
	var s AttributeSet
	for i := range vertices {
		v := &vertices[i]
		s.HasNormals = s.HasNormals || v.Normal != nil
		s.HasTangents = s.HasTangents || v.Tangent != nil
		s.Colors = max(s.Colors, len(v.Colors))
		s.TexCoords = max(s.TexCoords, len(v.TexCoords))
	}
	return s
}
