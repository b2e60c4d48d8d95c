// Path: internal/scraper/extract.go
package scraper

import "github.com/tidwall/gjson"

var (
	// containerKeys are the names the listing array has appeared under.
	containerKeys = []string{"Models", "models", "Items", "Model", "List", "Hits"}
	// nestedKeys are tried when a container key holds an object instead.
	nestedKeys = []string{"Models", "models", "Items", "List", "Hits"}
	// identityKeys mark an object as a model listing during the fallback scan.
	identityKeys = []string{"Name", "name", "Id", "ModelId", "MuseInfo", "ChineseName"}
)

// ExtractListings locates the listing array in a search response. The body
// is unwrapped from Data when present, then known container keys are tried,
// then the remaining values are scanned for something that looks like a list
// of listings. A nil result means an empty page.
func ExtractListings(resp gjson.Result) []gjson.Result {
	page := resp
	if data := resp.Get("Data"); nonEmpty(data) {
		page = data
	}
	if page.IsArray() {
		if acceptable(page) {
			return page.Array()
		}
		return nil
	}
	if !page.IsObject() {
		return nil
	}

	for _, key := range containerKeys {
		v := page.Get(key)
		// A known container that is present and empty means an empty page.
		if v.IsArray() && acceptable(v) {
			return v.Array()
		}
		if v.IsObject() {
			for _, sub := range nestedKeys {
				if vv := v.Get(sub); vv.IsArray() && acceptable(vv) && len(vv.Array()) > 0 {
					return vv.Array()
				}
			}
		}
	}

	var found []gjson.Result
	page.ForEach(func(_, v gjson.Result) bool {
		if v.IsArray() && looksLikeListings(v) {
			found = v.Array()
			return false
		}
		if v.IsObject() {
			v.ForEach(func(_, vv gjson.Result) bool {
				if vv.IsArray() && looksLikeListings(vv) {
					found = vv.Array()
					return false
				}
				return true
			})
			return found == nil
		}
		return true
	})
	return found
}

func nonEmpty(v gjson.Result) bool {
	switch {
	case v.IsArray():
		return len(v.Array()) > 0
	case v.IsObject():
		return len(v.Map()) > 0
	}
	return false
}

// acceptable is the minimal shape check for a known container: empty, or
// starting with an object.
func acceptable(list gjson.Result) bool {
	items := list.Array()
	return len(items) == 0 || items[0].IsObject()
}

// looksLikeListings is the stricter check for arrays found by scanning: the
// first element must be an object carrying an identifying field.
func looksLikeListings(list gjson.Result) bool {
	items := list.Array()
	if len(items) == 0 || !items[0].IsObject() {
		return false
	}
	for _, key := range identityKeys {
		if items[0].Get(key).Exists() {
			return true
		}
	}
	return false
}
