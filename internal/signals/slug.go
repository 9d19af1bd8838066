package signals

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/rewired-gh/transferoracle/internal/logger"
	"github.com/rewired-gh/transferoracle/internal/models"
)

// NameMapper maps fantasy nicknames to the full names the signal site uses in
// its player URLs. The zero value maps nothing.
type NameMapper struct {
	names map[string]string
}

// NewNameMapper creates a mapper from nickname to full name.
func NewNameMapper(names map[string]string) *NameMapper {
	cp := make(map[string]string, len(names))
	for k, v := range names {
		cp[k] = v
	}
	return &NameMapper{names: cp}
}

// LoadNameMapper reads a JSON object of nickname to full name. A missing file
// is not an error: the mapper falls back to nicknames.
func LoadNameMapper(path string) (*NameMapper, error) {
	if path == "" {
		return NewNameMapper(nil), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("Name mapping file %s not found, using nicknames for slugs", path)
		return NewNameMapper(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read name mapping: %w", err)
	}

	var names map[string]string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("failed to parse name mapping: %w", err)
	}
	return NewNameMapper(names), nil
}

// Len returns the number of mapped names.
func (m *NameMapper) Len() int {
	if m == nil {
		return 0
	}
	return len(m.names)
}

// Name returns the mapped full name of nickname, or nickname itself.
func (m *NameMapper) Name(nickname string) string {
	if m != nil {
		if full, ok := m.names[nickname]; ok && full != "" {
			return full
		}
	}
	return nickname
}

// SlugFor returns the URL slug of p.
func (m *NameMapper) SlugFor(p *models.Player) string {
	return Slug(m.Name(p.Nickname))
}

var slugReplacer = strings.NewReplacer(" ", "-", ".", "", "'", "")

// Slug lowercases name, strips accents, turns spaces into hyphens and drops
// dots and apostrophes. "Vinícius Jr." becomes "vinicius-jr".
func Slug(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	return slugReplacer.Replace(strings.ToLower(strings.TrimSpace(folded)))
}
