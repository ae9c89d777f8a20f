// Package numeric cleans submitted tab fields before they reach the database.
// Numbers are parsed, clamped to what the columns can store, and count-like
// fields are floored to integers. The same rules apply to every tab.
package numeric

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/shopspring/decimal"

	apperrors "github.com/stwalsh4118/dealdesk/internal/errors"
	"github.com/stwalsh4118/dealdesk/internal/models"
)

// DefaultMax is the largest magnitude a NUMERIC(15,2) column accepts.
const DefaultMax = 9999999999999.99

// countLike matches field names that hold whole quantities.
var countLike = regexp.MustCompile(`(^|_)(number|num|count|rooms|period|term|months?|years?)(_|$)`)

var (
	maxInt32 = decimal.NewFromInt(math.MaxInt32)
	minInt32 = decimal.NewFromInt(math.MinInt32)
)

// IsCountLike reports whether a field name denotes a whole-number quantity.
func IsCountLike(name string) bool {
	return countLike.MatchString(strings.ToLower(name))
}

// Value is one cleaned field. A nil Value is an explicit NULL.
type Value struct {
	Field models.Field
	Value any
}

// Policy applies the field hygiene rules.
type Policy struct {
	max      decimal.Decimal
	validate *validator.Validate
	trans    ut.Translator
}

// NewPolicy creates a policy clamping numbers to ±max. A non-positive max
// selects DefaultMax.
func NewPolicy(max float64) *Policy {
	if max <= 0 {
		max = DefaultMax
	}
	v := validator.New()
	locale := en.New()
	uni := ut.New(locale, locale)
	trans, _ := uni.GetTranslator("en")
	if err := entranslations.RegisterDefaultTranslations(v, trans); err != nil {
		trans = nil
	}
	return &Policy{max: decimal.NewFromFloat(max), validate: v, trans: trans}
}

// Apply cleans the fields of a submission for tab. Keys that are not fields
// of the tab are ignored; a field may also be submitted under one of its
// column aliases. The result follows the tab's field order.
func (p *Policy) Apply(tab models.Tab, fields map[string]any) ([]Value, error) {
	var out []Value
	for _, f := range tab.Fields {
		raw, ok := lookup(f, fields)
		if !ok {
			continue
		}
		v, err := p.Clean(f, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, Value{Field: f, Value: v})
	}
	return out, nil
}

func lookup(f models.Field, fields map[string]any) (any, bool) {
	for _, name := range f.Candidates() {
		if v, ok := fields[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Clean converts one raw value according to the field's kind.
func (p *Policy) Clean(f models.Field, raw any) (any, error) {
	if f.Kind == models.FieldText {
		return p.cleanText(f, raw)
	}

	d, ok, err := parse(raw)
	if err != nil {
		return nil, &apperrors.ValidationError{Field: f.Name, Reason: err.Error()}
	}
	if !ok {
		return nil, nil
	}

	d = p.clamp(d)
	if f.Kind == models.FieldInteger || IsCountLike(f.Name) {
		d = d.Floor()
		if d.GreaterThan(maxInt32) {
			d = maxInt32
		} else if d.LessThan(minInt32) {
			d = minInt32
		}
		return d.IntPart(), nil
	}
	return d.InexactFloat64(), nil
}

func (p *Policy) clamp(d decimal.Decimal) decimal.Decimal {
	if d.GreaterThan(p.max) {
		return p.max
	}
	if neg := p.max.Neg(); d.LessThan(neg) {
		return neg
	}
	return d
}

func (p *Policy) cleanText(f models.Field, raw any) (any, error) {
	var s string
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		s = strings.TrimSpace(v)
	case fmt.Stringer:
		s = strings.TrimSpace(v.String())
	case float64, float32, int, int32, int64, json.Number:
		s = fmt.Sprint(v)
	default:
		return nil, &apperrors.ValidationError{Field: f.Name, Reason: fmt.Sprintf("unsupported value of type %T", raw)}
	}
	if s == "" {
		return nil, nil
	}
	if f.Rule != "" {
		if err := p.validate.Var(s, f.Rule); err != nil {
			return nil, &apperrors.ValidationError{Field: f.Name, Reason: p.describe(err)}
		}
	}
	return s, nil
}

func (p *Policy) describe(err error) string {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	if p.trans != nil {
		return strings.TrimSpace(fe.Translate(p.trans))
	}
	return "failed " + fe.Tag() + " " + fe.Param()
}

var numberNoise = strings.NewReplacer("$", "", ",", "", "%", "", " ", "", "_", "")

// parse reads a number. ok is false for nil and blank input, which mean NULL.
func parse(raw any) (d decimal.Decimal, ok bool, err error) {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero, false, nil
	case decimal.Decimal:
		return v, true, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, false, fmt.Errorf("must be a finite number")
		}
		return decimal.NewFromFloat(v), true, nil
	case float32:
		return parse(float64(v))
	case int:
		return decimal.NewFromInt(int64(v)), true, nil
	case int32:
		return decimal.NewFromInt32(v), true, nil
	case int64:
		return decimal.NewFromInt(v), true, nil
	case uint:
		return decimal.NewFromUint64(uint64(v)), true, nil
	case uint32:
		return decimal.NewFromUint64(uint64(v)), true, nil
	case uint64:
		return decimal.NewFromUint64(v), true, nil
	case json.Number:
		return parse(string(v))
	case string:
		s := numberNoise.Replace(strings.TrimSpace(v))
		if s == "" {
			return decimal.Zero, false, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, false, fmt.Errorf("must be numeric, got %q", v)
		}
		return d, true, nil
	default:
		return decimal.Zero, false, fmt.Errorf("must be numeric, got %T", raw)
	}
}
