package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type seedEntry struct {
	ID    int64  `yaml:"id"`
	Title string `yaml:"title"`
	Tags  any    `yaml:"tags"`
	Link  string `yaml:"link"`
}

type seedFile struct {
	Products []seedEntry `yaml:"products"`
}

// LoadSeedFile reads products from YAML. Tags may be a list or a comma separated string.
func LoadSeedFile(path string) ([]Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read seed file: %w", err)
	}
	return ParseSeed(data)
}

func ParseSeed(data []byte) ([]Entity, error) {
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("catalog: parse seed file: %w", err)
	}
	out := make([]Entity, 0, len(file.Products))
	for i, p := range file.Products {
		e := Entity{ID: p.ID, Title: p.Title, Link: p.Link}
		switch tags := p.Tags.(type) {
		case nil:
		case string:
			e.Tags = ParseTags(tags)
		case []any:
			for _, t := range tags {
				e.Tags = append(e.Tags, fmt.Sprint(t))
			}
		default:
			return nil, fmt.Errorf("catalog: seed entry %d: unsupported tags type %T", i, p.Tags)
		}
		e.Normalize()
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("catalog: seed entry %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// DefaultProducts returns the built-in catalog.
func DefaultProducts() []Entity {
	raw := []struct {
		id    int64
		title string
		tags  string
		link  string
	}{
		{1, "TSO Products", "Aftermarket Festool accessories, Precision woodworking tools, Router table inserts, " +
			"Guide rail accessories, Dust collection adapters,TSO Products", "https://tsoproducts.com/?aff=5"},
		{2, "Bits and Bits Company", "Router bits, Drill bits, Saw blades, Woodworking accessories, " +
			"Carbide cutting tools, Bits and Bits Company", "http://bit.ly/bitsbitsbw"},
		{3, "Taylor Toolworks", "Taylor Toolworks, Woodworking hand tools, Japanese saws, Chisels, " +
			"Sharpening supplies, Layout tools", "https://lddy.no/1e5hv"},
		{4, "Festool LR 32 System", "Festool LR 32 System, Cabinet making, Shelf pin holes, Precision drilling, " +
			"32mm system, Modular shelving, European cabinetry, Drawer slide installation, " +
			"Cabinet hardware installation", "https://amzn.to/3hRTvLB"},
		{5, "Festool Trigger Clamp", "Festool Trigger Clamp, Quick release, One-handed operation, " +
			"Versatile clamping, Woodworking, Assembly, Glue-ups", "https://amzn.to/2HoVydC"},
		{6, "Festool LR 32 Rail", "Festool LR 32 Rail, Guide rail, 32mm hole spacing, Cabinet making, " +
			"Shelf pin holes, Precision drilling, Modular, Aluminum extrusion", "https://amzn.to/33LsnsG"},
		{7, "Festool OF 1400", "Festool OF 1400, Plunge router, Variable speed, Dust extraction, " +
			"Precision routing, Cabinet making, Edge profiling, Mortising", "https://amzn.to/2FRerp5"},
		{8, "Festool Vac Sys Head", "Festool Vac Sys Head, Vacuum clamping, Workholding system, " +
			"Precision woodworking, Dust extraction, Versatile clamping", "https://amzn.to/3010rjw"},
		{9, "Festool Midi Vac", "Festool Midi Vac, Compact dust extractor, HEPA filtration, Auto-start, " +
			"Variable suction, Systainer compatibility", "https://amzn.to/2HfMmrM"},
		{10, "Festool Bluetooth Switch", "Festool Bluetooth Switch, Remote dust extractor control, " +
			"Wireless operation, Tool-triggered activation, Energy efficiency, Workshop convenience",
			"https://amzn.to/33RAt36"},
		{11, "Woodpeckers TS600", "Woodpeckers TS600, T-square, Precision measurement, Layout tool, " +
			"Anodized aluminum, Woodworking, Imperial/metric scales", "https://amzn.to/3mIc34t"},
	}
	out := make([]Entity, len(raw))
	for i, r := range raw {
		out[i] = Entity{ID: r.id, Title: r.title, Tags: ParseTags(r.tags), Link: r.link}
	}
	return out
}
