package variants

import (
	"fmt"
	"sort"
	"strings"

	"github.com/angelmondragon/packfinderz-inventory/pkg/config"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
)

const (
	keyPairSeparator = "|"
	keyTypeSeparator = ":"
)

// OptionGroup is one variant dimension and its values, e.g. SIZE [S M L].
type OptionGroup struct {
	Type   string   `json:"type" validate:"required,max=64"`
	Values []string `json:"values" validate:"required,min=1,dive,required,max=128"`
}

// Combination is one cell of the cartesian product, ordered like the groups
// it came from.
type Combination []models.OptionValue

// Generate returns the cartesian product of the groups. The first group
// varies slowest. No groups yields no combinations.
func Generate(groups []OptionGroup) []Combination {
	if len(groups) == 0 {
		return nil
	}
	head := groups[0]
	if len(groups) == 1 {
		out := make([]Combination, 0, len(head.Values))
		for _, value := range head.Values {
			out = append(out, Combination{{Type: head.Type, Value: value}})
		}
		return out
	}

	rest := Generate(groups[1:])
	out := make([]Combination, 0, len(head.Values)*len(rest))
	for _, value := range head.Values {
		for _, tail := range rest {
			combo := make(Combination, 0, len(tail)+1)
			combo = append(combo, models.OptionValue{Type: head.Type, Value: value})
			combo = append(combo, tail...)
			out = append(out, combo)
		}
	}
	return out
}

// CombinationKey is the canonical identity of a combination: TYPE:value
// pairs sorted by type and joined with "|". Group order does not matter.
func CombinationKey(c Combination) string {
	pairs := make([]models.OptionValue, len(c))
	copy(pairs, c)
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Type < pairs[j].Type })

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.Type + keyTypeSeparator + p.Value
	}
	return strings.Join(parts, keyPairSeparator)
}

// Count is the number of combinations Generate would return.
func Count(groups []OptionGroup) int {
	if len(groups) == 0 {
		return 0
	}
	n := 1
	for _, g := range groups {
		n *= len(g.Values)
	}
	return n
}

// NormalizeGroups upper-cases and trims types and trims values. Empty values
// are kept so ValidateGroups can reject them.
func NormalizeGroups(groups []OptionGroup) []OptionGroup {
	out := make([]OptionGroup, len(groups))
	for i, g := range groups {
		values := make([]string, len(g.Values))
		for j, v := range g.Values {
			values[j] = strings.TrimSpace(v)
		}
		out[i] = OptionGroup{Type: strings.ToUpper(strings.TrimSpace(g.Type)), Values: values}
	}
	return out
}

// ValidateGroups checks normalized groups against the dimension cap and the
// combination ceiling.
func ValidateGroups(groups []OptionGroup, maxCombinations int) error {
	if len(groups) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one variant dimension is required")
	}
	if len(groups) > config.MaxVariantDimensions {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("a product supports at most %d variant dimensions", config.MaxVariantDimensions)).
			WithDetails(map[string]any{"dimensions": len(groups)})
	}

	seenTypes := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		if g.Type == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "variant dimension type is required")
		}
		if strings.ContainsAny(g.Type, keyPairSeparator+keyTypeSeparator) {
			return pkgerrors.New(pkgerrors.CodeValidation, "variant dimension type contains a reserved character").
				WithDetails(map[string]any{"type": g.Type})
		}
		if _, dup := seenTypes[g.Type]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, "duplicate variant dimension").
				WithDetails(map[string]any{"type": g.Type})
		}
		seenTypes[g.Type] = struct{}{}

		if len(g.Values) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "variant dimension needs at least one value").
				WithDetails(map[string]any{"type": g.Type})
		}
		seenValues := make(map[string]struct{}, len(g.Values))
		for _, v := range g.Values {
			if v == "" || strings.Contains(v, keyPairSeparator) {
				return pkgerrors.New(pkgerrors.CodeValidation, "variant value is empty or contains a reserved character").
					WithDetails(map[string]any{"type": g.Type, "value": v})
			}
			if _, dup := seenValues[v]; dup {
				return pkgerrors.New(pkgerrors.CodeValidation, "duplicate variant value").
					WithDetails(map[string]any{"type": g.Type, "value": v})
			}
			seenValues[v] = struct{}{}
		}
	}

	if maxCombinations > 0 {
		if n := Count(groups); n > maxCombinations {
			return pkgerrors.New(pkgerrors.CodeValidation, "too many variant combinations").
				WithDetails(map[string]any{"combinations": n, "max": maxCombinations})
		}
	}
	return nil
}
