// Path: internal/parser/parser.go
package parser

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"

	"top-loras/internal/domain"
)

// ErrNotObject is returned when a listing is not a JSON object.
var ErrNotObject = errors.New("listing is not a JSON object")

// Parse normalizes one raw upstream listing into a ModelRecord.
// Missing or oddly typed fields produce zero values; the only error is a
// listing that is not an object at all.
func Parse(item gjson.Result) (domain.ModelRecord, error) {
	if !item.IsObject() {
		return domain.ModelRecord{}, ErrNotObject
	}

	id, _ := first(item, idChain)
	titleCN, _ := first(item, titleCNChain)
	titleEN, _ := first(item, titleENChain)
	author, _ := first(item, authorChain)
	sdVersion, _ := first(item, sdVersionChain)
	license, _ := text("License")(item)
	vision, _ := text("VisionFoundation")(item)
	tagsCN, tagsEN := tags(item)

	baseModels := stringList(firstTruthy(item, "BaseModel"))
	if baseModels == nil {
		baseModels = []string{}
	}

	rec := domain.ModelRecord{
		TitleCN:                titleCN,
		TitleEN:                titleEN,
		Author:                 author,
		Avatar:                 avatar(item),
		UserName:               userName(item),
		UserProfile:            userProfile(item),
		CoverURL:               ExtractCoverURL(item),
		Downloads:              ExtractDownloads(item),
		Likes:                  ExtractLikes(item),
		License:                license,
		TagsCN:                 tagsCN,
		TagsEN:                 tagsEN,
		BaseModels:             baseModels,
		StableDiffusionVersion: sdVersion,
		TriggerWords:           stringList(item.Get("TriggerWords")),
		VisionFoundation:       vision,
		UpdatedAt:              ExtractUpdatedAt(item),
	}

	pageURL := ExtractModelScopeURL(item)

	// Last resort for a canonical id: a bare or missing name is replaced by
	// the org/name found in the detail URL.
	if !strings.Contains(id, "/") && pageURL != "" {
		if derived, ok := idFromURL(pageURL); ok {
			id = derived
		}
	}
	rec.ID = id

	if pageURL == "" && id != "" {
		pageURL = siteBase + "models/" + id + "/summary"
	}
	rec.ModelScopeURL = pageURL

	return rec, nil
}

// organizationOwned reports whether the listing belongs to an organization
// rather than an individual user.
func organizationOwned(item gjson.Result) bool {
	org := item.Get("Organization")
	return org.IsObject() && truthy(org.Get("Id"))
}

func avatar(item gjson.Result) string {
	chain := []extractor[string]{text("Avatar")}
	if organizationOwned(item) {
		chain = []extractor[string]{text("Organization.Avatar", "Avatar")}
	}
	s, _ := first(item, chain)
	return s
}

func userName(item gjson.Result) string {
	chain := []extractor[string]{text("MuseInfo.model.operatorName", "NickName", "CreatedBy")}
	if organizationOwned(item) {
		chain = []extractor[string]{text("Organization.FullName", "NickName", "CreatedBy")}
	}
	s, _ := first(item, chain)
	return s
}

func userProfile(item gjson.Result) string {
	emp, ok := text("MuseInfo.model.operatorEmpId")(item)
	if !ok {
		return ""
	}
	return profileURLPrefix + emp
}
