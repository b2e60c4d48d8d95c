// Path: internal/classify/classify.go
package classify

import (
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"top-loras/internal/domain"
	"top-loras/internal/parser"
)

const (
	keyword = "lora"
	// maxDepth bounds the recursive search over nested listing values.
	maxDepth = 32
)

// reducedVariant matches parameter-reduced variants that never count as top models.
var reducedVariant = regexp.MustCompile(`(?i)light|distill`)

// ContainsLoRA reports whether any string inside v mentions "lora",
// case-insensitively. Numbers, booleans and null never match.
func ContainsLoRA(v gjson.Result) bool {
	return containsFold(v, keyword, 0)
}

func containsFold(v gjson.Result, needle string, depth int) bool {
	if depth > maxDepth {
		return false
	}
	switch {
	case v.Type == gjson.String:
		return strings.Contains(strings.ToLower(v.Str), needle)
	case v.IsArray(), v.IsObject():
		found := false
		v.ForEach(func(_, child gjson.Result) bool {
			found = containsFold(child, needle, depth+1)
			return !found
		})
		return found
	}
	return false
}

func equalsFold(v gjson.Result, want string) bool {
	return v.Type == gjson.String && strings.EqualFold(strings.TrimSpace(v.Str), want)
}

func mentions(v gjson.Result) bool {
	return v.Type == gjson.String && strings.Contains(strings.ToLower(v.Str), keyword)
}

// candidacy checks are OR-ed; the upstream API has no reliable LoRA flag.
var candidacy = []func(item gjson.Result) bool{
	func(item gjson.Result) bool { return equalsFold(item.Get("AigcType"), keyword) },
	func(item gjson.Result) bool { return equalsFold(item.Get("MuseInfo.model.modelType"), keyword) },
	taggedLoRA,
	func(item gjson.Result) bool { return ContainsLoRA(item.Get("Name")) || ContainsLoRA(item.Get("NickName")) },
	hasLoRAFile,
}

func taggedLoRA(item gjson.Result) bool {
	list := item.Get("OfficialTags")
	if !list.IsArray() {
		return false
	}
	for _, t := range list.Array() {
		if !t.IsObject() {
			continue
		}
		if mentions(t.Get("Tag")) || mentions(t.Get("Name")) || mentions(t.Get("ChineseName")) {
			return true
		}
	}
	return false
}

// hasLoRAFile looks at file names declared under ModelInfos.<variant>.files.
func hasLoRAFile(item gjson.Result) bool {
	infos := item.Get("ModelInfos")
	if !infos.IsObject() {
		return false
	}
	found := false
	infos.ForEach(func(_, info gjson.Result) bool {
		files := info.Get("files")
		if !info.IsObject() || !files.IsArray() {
			return true
		}
		for _, f := range files.Array() {
			name := f
			if f.IsObject() {
				name = f.Get("name")
			}
			if mentions(name) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// IsCandidate reports whether a listing looks like a LoRA model.
func IsCandidate(item gjson.Result) bool {
	if !item.IsObject() {
		return false
	}
	for _, check := range candidacy {
		if check(item) {
			return true
		}
	}
	return false
}

// displayName is the name the reduced-variant filter is applied to.
func displayName(item gjson.Result) string {
	for _, key := range []string{"Name", "name"} {
		if v := item.Get(key); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

// Excluded reports whether the listing is a light/distilled variant.
func Excluded(item gjson.Result) bool {
	return reducedVariant.MatchString(displayName(item))
}

// ProcessModels filters raw listings down to LoRA candidates and parses each
// one. A listing that fails to parse is logged and skipped.
func ProcessModels(listings []gjson.Result) []domain.ModelRecord {
	results := make([]domain.ModelRecord, 0, len(listings))
	for idx, item := range listings {
		if !item.IsObject() {
			continue
		}
		if Excluded(item) {
			log.WithField("name", displayName(item)).Debug("Skipping model due to name filter (light/distill)")
			continue
		}
		if !IsCandidate(item) {
			continue
		}
		rec, err := parser.Parse(item)
		if err != nil {
			log.WithField("index", idx).Warnf("Failed to parse listing: %v", err)
			continue
		}
		results = append(results, rec)
	}
	return results
}
