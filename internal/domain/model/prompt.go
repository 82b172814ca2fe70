package model

// Prompt is one entry of the premium catalog.
type Prompt struct {
	Slug     string `yaml:"slug"`
	Title    string `yaml:"title"`
	Category string `yaml:"category"`
	Body     string `yaml:"body"`
}
