package question

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/victornm/dramquiz/internal/domain"
)

// Static serves a fixed catalog held in memory. It backs demos, tests and
// deployments that ship the catalog as a YAML file.
type Static struct {
	items []domain.Question
}

func NewStatic(items []domain.Question) *Static {
	return &Static{items: items}
}

type catalogFile struct {
	Questions []domain.Question `yaml:"questions"`
}

// LoadCatalog reads a YAML catalog from path.
func LoadCatalog(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("question: read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML catalog and validates every item.
func ParseCatalog(data []byte) (*Static, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("question: decode catalog: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Questions))
	for i, q := range f.Questions {
		if q.Kind == "" {
			f.Questions[i].Kind = domain.KindTrivia
			q.Kind = domain.KindTrivia
		}
		if err := validate(q); err != nil {
			return nil, fmt.Errorf("question: catalog item %d: %w", i, err)
		}
		if _, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("question: catalog item %d: duplicate id %q", i, q.ID)
		}
		seen[q.ID] = struct{}{}
	}

	return NewStatic(f.Questions), nil
}

func validate(q domain.Question) error {
	switch {
	case q.ID == "":
		return fmt.Errorf("missing id")
	case q.Kind != domain.KindTrivia && q.Kind != domain.KindTasting:
		return fmt.Errorf("%s: unknown kind %q", q.ID, q.Kind)
	case !q.Category.Valid():
		return fmt.Errorf("%s: unknown category %q", q.ID, q.Category)
	case !q.Difficulty.Valid():
		return fmt.Errorf("%s: unknown difficulty %q", q.ID, q.Difficulty)
	case q.Answer == "":
		return fmt.Errorf("%s: missing answer", q.ID)
	case q.Kind == domain.KindTasting && len(q.OrderedHints()) == 0:
		return fmt.Errorf("%s: tasting target without hints", q.ID)
	}
	return nil
}

func (s *Static) FetchPool(_ context.Context, q PoolQuery) ([]domain.Question, error) {
	return Filter(s.items, q), nil
}

// Len returns the catalog size.
func (s *Static) Len() int { return len(s.items) }
