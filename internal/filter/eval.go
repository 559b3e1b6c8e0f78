package filter

import (
	"github.com/vyuha/vyuha-catalog/internal/catalog"
)

// Evaluate reports whether r satisfies e. A nil expression matches every
// record. Evaluation reads r and e only.
func Evaluate(e Expr, r *catalog.ServiceRecord) bool {
	switch t := e.(type) {
	case nil:
		return true
	case And:
		return Evaluate(t.Left, r) && Evaluate(t.Right, r)
	case Or:
		return Evaluate(t.Left, r) || Evaluate(t.Right, r)
	case Not:
		return !Evaluate(t.Operand, r)
	case *KeyValue:
		return t.matches(r)
	default:
		return false
	}
}

// Apply returns the records satisfying e, preserving order. The result is a
// new slice; the input is not modified.
func Apply(e Expr, records []catalog.ServiceRecord) []catalog.ServiceRecord {
	out := make([]catalog.ServiceRecord, 0, len(records))
	for i := range records {
		if Evaluate(e, &records[i]) {
			out = append(out, records[i])
		}
	}
	return out
}

func (kv *KeyValue) matches(r *catalog.ServiceRecord) bool {
	if kv.field == nil {
		return false
	}
	v := kv.field(r)
	if kv.pattern == nil {
		return v.empty()
	}
	if !v.present {
		return false
	}
	for _, s := range v.values {
		if kv.pattern.MatchString(s) {
			return true
		}
	}
	return false
}
