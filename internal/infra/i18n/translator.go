package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var LocalesFS embed.FS

// Translator resolves message keys for one language, falling back to a base
// language for keys the primary file lacks.
type Translator struct {
	lang         string
	translations map[string]string
	fallback     map[string]string
}

// NewTranslator loads locales/<lang>.yaml from fsys, with locales/<fallback>.yaml
// as a backstop. An empty fallback disables it.
func NewTranslator(fsys fs.FS, lang, fallback string) (*Translator, error) {
	primary, err := readLocale(fsys, lang)
	if err != nil {
		return nil, err
	}
	t := &Translator{lang: lang, translations: primary}
	if fallback != "" && fallback != lang {
		if t.fallback, err = readLocale(fsys, fallback); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func readLocale(fsys fs.FS, lang string) (map[string]string, error) {
	filePath := path.Join("locales", lang+".yaml")
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read translation file %s: %w", filePath, err)
	}
	return parseLocale(data)
}

func parseLocale(data []byte) (map[string]string, error) {
	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation file: %w", err)
	}
	return translations, nil
}

func newTranslatorFromBytes(data []byte) (*Translator, error) {
	m, err := parseLocale(data)
	if err != nil {
		return nil, err
	}
	return &Translator{translations: m}, nil
}

func (t *Translator) Lang() string { return t.lang }

// T formats the message for key. Unknown keys are returned verbatim.
func (t *Translator) T(key string, args ...interface{}) string {
	format, ok := t.translations[key]
	if !ok {
		if format, ok = t.fallback[key]; !ok {
			return key
		}
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}
