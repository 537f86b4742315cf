package circuit

import (
	"strings"

	"github.com/occhealth/occhealth/internal/platform/apperr"
	"github.com/occhealth/occhealth/pkg/textnorm"
)

// Verdict is the aptitude printed on a certificate.
type Verdict string

const (
	VerdictFit             Verdict = "APTO"
	VerdictFitRestrictions Verdict = "APTO CON RESTRICCIONES"
	VerdictObserved        Verdict = "OBSERVADO"
	VerdictUnfit           Verdict = "NO APTO"
)

// severity orders verdicts from least to most restrictive.
func (v Verdict) severity() int {
	switch v {
	case VerdictFit:
		return 0
	case VerdictFitRestrictions:
		return 1
	case VerdictObserved:
		return 2
	case VerdictUnfit:
		return 3
	default:
		return -1
	}
}

func (v Verdict) Valid() bool { return v.severity() >= 0 }

// ParseVerdict accepts any casing and accents of the four verdicts.
func ParseVerdict(s string) (Verdict, bool) {
	v := Verdict(strings.ToUpper(strings.Join(textnorm.Words(s), " ")))
	return v, v.Valid()
}

// Tier is the severity of a single exam conclusion.
type Tier int

const (
	TierNormal Tier = iota
	TierObserved
	TierUnfit
)

// observedMarkers flag an abnormal finding unless negated by the previous word.
var observedMarkers = map[string]bool{
	"observado":  true,
	"observada":  true,
	"anormal":    true,
	"alterado":   true,
	"patologico": true,
	"patologica": true,
}

var negations = map[string]bool{"sin": true, "no": true}

// linkingWords may sit between "no" and "apto": "no es apto", "no se
// considera apto".
var linkingWords = map[string]bool{
	"es": true, "esta": true, "resulta": true, "se": true, "considera": true,
	"encuentra": true, "fue": true, "sale": true, "queda": true,
}

// maxLinking bounds the words skipped between "no" and "apto".
const maxLinking = 2

// negatedFit reports whether words[i] == "apto" is negated by a preceding
// "no", allowing up to maxLinking linking words in between.
func negatedFit(words []string, i int) bool {
	for j, skipped := i-1, 0; j >= 0; j-- {
		if words[j] == "no" {
			return true
		}
		if !linkingWords[words[j]] || skipped == maxLinking {
			return false
		}
		skipped++
	}
	return false
}

// ClassifyConclusion grades a free-text conclusion. Matching ignores case
// and accents.
func ClassifyConclusion(conclusion string) Tier {
	words := textnorm.Words(conclusion)
	tier := TierNormal
	for i, w := range words {
		prev := ""
		if i > 0 {
			prev = words[i-1]
		}
		if w == "apto" && negatedFit(words, i) {
			return TierUnfit
		}
		if observedMarkers[w] && !negations[prev] {
			tier = TierObserved
		}
	}
	return tier
}

// DeriveVerdict aggregates the conclusions of every result.
func DeriveVerdict(conclusions []string) Verdict {
	worst := TierNormal
	for _, c := range conclusions {
		if t := ClassifyConclusion(c); t > worst {
			worst = t
		}
	}
	switch worst {
	case TierUnfit:
		return VerdictUnfit
	case TierObserved:
		return VerdictObserved
	default:
		return VerdictFit
	}
}

// ResolveVerdict applies a physician override to the derived verdict. The
// override may not be milder than the derived verdict, except that an
// observed admission may be certified fit with restrictions. Any fit with
// restrictions verdict needs restrictions text.
func ResolveVerdict(derived Verdict, override *Verdict, restrictions string) (Verdict, error) {
	final := derived
	if override != nil {
		if !override.Valid() {
			return "", apperr.Validation("unknown verdict %q", *override)
		}
		final = *override
	}
	if final.severity() < derived.severity() &&
		!(derived == VerdictObserved && final == VerdictFitRestrictions) {
		return "", apperr.Validation("verdict %s is less severe than the derived %s", final, derived)
	}
	if final == VerdictFitRestrictions && strings.TrimSpace(restrictions) == "" {
		return "", apperr.Validation("%s requires restrictions", VerdictFitRestrictions)
	}
	return final, nil
}
