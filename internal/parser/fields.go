// Path: internal/parser/fields.go
package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	siteBase         = "https://modelscope.cn/"
	siteScheme       = "modelscope://"
	updatedAtLayout  = "2006-01-02T15:04:05Z"
	profileURLPrefix = siteBase + "profile/"
)

var (
	// siteModelPath finds <org>/<name> after the site host, skipping the
	// optional /models/ segment used by detail pages.
	siteModelPath = regexp.MustCompile(`modelscope\.cn/(?:models/)?([^/]+)/([^/?#]+)`)
	idSegment     = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
)

var downloadsChain = []extractor[int64]{
	number("Downloads"),
	within([]extractor[int64]{number("downloads")}, "stats"),
	truthyNumber("ViewCount", "views"),
}

var likesChain = []extractor[int64]{
	number("LikeCount"),
	number("Likes"),
	number("Like"),
	number("like_count"),
	number("like"),
	within([]extractor[int64]{
		number("likes"),
		number("like_count"),
		number("likes_count"),
	}, "stats", "Stats"),
	truthyNumber("Stars", "star"),
	within([]extractor[int64]{truthyNumber("favoriteCount", "favorite")}, "MuseInfo.model"),
}

var idChain = []extractor[string]{
	within([]extractor[string]{trimmed("modelName", "model_name", "showName")}, "MuseInfo.model"),
	text("Name", "name", "ModelId", "Id"),
}

var titleCNChain = []extractor[string]{
	text("ChineseName"),
	text("MuseInfo.model.showName", "MuseInfo.model.modelName"),
}

var titleENChain = []extractor[string]{
	text("Name", "MuseInfo.model.modelName", "NickName"),
}

var authorChain = []extractor[string]{
	text("CreatedBy", "Owner", "Author"),
}

var sdVersionChain = []extractor[string]{
	text("MuseInfo.model.stableDiffusionVersion"),
	text("VisionFoundation"),
}

var updatedAtChain = []extractor[string]{
	epochSeconds("LastUpdatedTime", "LastUpdateTime"),
	text("GmtModified", "gmt_modified", "UpdatedAt", "updated_at"),
	within([]extractor[string]{epochMillis("gmtModified")}, "MuseInfo.model"),
}

var modelScopeURLChain = []extractor[string]{
	versionURL,
	urlString("ModelDetail.url"),
	pathAndName,
}

// epochSeconds formats a numeric unix-seconds value as UTC ISO-8601.
func epochSeconds(paths ...string) extractor[string] {
	return func(item gjson.Result) (string, bool) {
		v := firstTruthy(item, paths...)
		if v.Type != gjson.Number {
			return "", false
		}
		return time.Unix(int64(v.Num), 0).UTC().Format(updatedAtLayout), true
	}
}

// epochMillis is epochSeconds for millisecond timestamps.
func epochMillis(path string) extractor[string] {
	return func(item gjson.Result) (string, bool) {
		v := item.Get(path)
		if v.Type != gjson.Number || v.Num == 0 {
			return "", false
		}
		return time.Unix(int64(v.Num)/1000, 0).UTC().Format(updatedAtLayout), true
	}
}

// versionURL walks MuseInfo.versions looking for an explicit model URL, first
// in each version's nested modelVersion object, then on the version itself.
func versionURL(item gjson.Result) (string, bool) {
	versions := item.Get("MuseInfo.versions")
	if !versions.IsArray() {
		return "", false
	}
	for _, v := range versions.Array() {
		if !v.IsObject() {
			continue
		}
		mv := firstTruthy(v, "modelVersion", "model_version")
		if !truthy(mv) {
			mv = v
		}
		if mv.IsObject() {
			if u, ok := first(mv, []extractor[string]{
				urlString("modelUrl"), urlString("openlmUrl"), urlString("sourceUrl"), urlString("ossUrl"),
			}); ok {
				return u, true
			}
		}
		if u, ok := first(v, []extractor[string]{
			urlString("modelUrl"), urlString("openlmUrl"), urlString("sourceUrl"),
		}); ok {
			return u, true
		}
	}
	return "", false
}

func urlString(path string) extractor[string] {
	return func(item gjson.Result) (string, bool) {
		v := item.Get(path)
		return v.Str, v.Type == gjson.String && v.Str != ""
	}
}

// pathAndName rebuilds a detail URL from the listing's namespace and name.
func pathAndName(item gjson.Result) (string, bool) {
	p, okPath := text("Path")(item)
	n, okName := text("Name")(item)
	if !okPath || !okName {
		return "", false
	}
	return siteBase + p + "/" + n, true
}

// ExtractDownloads returns the download count, falling back to stats and view
// counts, or 0 when nothing numeric is present.
func ExtractDownloads(item gjson.Result) int64 {
	n, _ := first(item, downloadsChain)
	return n
}

// ExtractLikes returns the like count from the first of several alternate
// fields that carries a number, or 0.
func ExtractLikes(item gjson.Result) int64 {
	n, _ := first(item, likesChain)
	return n
}

// ExtractCoverURL returns the first cover image of the first version, or "".
func ExtractCoverURL(item gjson.Result) string {
	versions := item.Get("MuseInfo.versions")
	if !versions.IsArray() {
		return ""
	}
	list := versions.Array()
	if len(list) == 0 || !list[0].IsObject() {
		return ""
	}
	covers := list[0].Get("coverImages")
	if !covers.IsArray() {
		return ""
	}
	images := covers.Array()
	if len(images) == 0 || !images[0].IsObject() {
		return ""
	}
	u := images[0].Get("url")
	if u.Type != gjson.String {
		return ""
	}
	return u.Str
}

// ExtractUpdatedAt returns the last-modified time as an ISO-8601 UTC string.
func ExtractUpdatedAt(item gjson.Result) string {
	s, _ := first(item, updatedAtChain)
	return s
}

// ExtractModelScopeURL returns the detail page URL found in the listing, with
// the modelscope:// scheme rewritten to https. It does not synthesize one.
func ExtractModelScopeURL(item gjson.Result) string {
	u, ok := first(item, modelScopeURLChain)
	if !ok {
		return ""
	}
	if strings.HasPrefix(u, siteScheme) {
		return siteBase + strings.TrimPrefix(u, siteScheme)
	}
	return u
}

// idFromURL derives org/name from a detail URL. Both segments must be plain
// identifiers.
func idFromURL(u string) (string, bool) {
	m := siteModelPath.FindStringSubmatch(u)
	if m == nil {
		return "", false
	}
	org, name := m[1], m[2]
	if !idSegment.MatchString(org) || !idSegment.MatchString(name) {
		return "", false
	}
	return org + "/" + name, true
}

// tags splits OfficialTags into parallel Chinese and English name lists.
func tags(item gjson.Result) (cn, en []string) {
	cn, en = []string{}, []string{}
	list := item.Get("OfficialTags")
	if !list.IsArray() {
		return cn, en
	}
	for _, t := range list.Array() {
		if !t.IsObject() {
			continue
		}
		if s, ok := text("ChineseName")(t); ok {
			cn = append(cn, s)
		}
		if s, ok := text("Name")(t); ok {
			en = append(en, s)
		}
	}
	return cn, en
}
