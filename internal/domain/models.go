// Path: internal/domain/models.go
package domain

import (
	"fmt"
	"time"
)

// ModelRecord is the normalized form of one upstream LoRA listing.
// It is what gets cached, mirrored to the catalog and served to callers.
// Empty strings stand for fields the upstream listing did not provide.
type ModelRecord struct {
	ID                     string   `json:"id" bson:"model_id"`
	TitleCN                string   `json:"title_cn,omitempty" bson:"title_cn,omitempty"`
	TitleEN                string   `json:"title_en,omitempty" bson:"title_en,omitempty"`
	Author                 string   `json:"author,omitempty" bson:"author,omitempty"`
	Avatar                 string   `json:"avatar,omitempty" bson:"avatar,omitempty"`
	UserName               string   `json:"user_name,omitempty" bson:"user_name,omitempty"`
	UserProfile            string   `json:"user_profile,omitempty" bson:"user_profile,omitempty"`
	CoverURL               string   `json:"cover_url,omitempty" bson:"cover_url,omitempty"`
	CoverLocal             string   `json:"cover_local,omitempty" bson:"cover_local,omitempty"`
	Downloads              int64    `json:"downloads" bson:"downloads"`
	Likes                  int64    `json:"likes" bson:"likes"`
	License                string   `json:"license,omitempty" bson:"license,omitempty"`
	TagsCN                 []string `json:"tags_cn" bson:"tags_cn"`
	TagsEN                 []string `json:"tags_en" bson:"tags_en"`
	BaseModels             []string `json:"base_models" bson:"base_models"`
	StableDiffusionVersion string   `json:"stable_diffusion_version,omitempty" bson:"stable_diffusion_version,omitempty"`
	TriggerWords           []string `json:"trigger_words,omitempty" bson:"trigger_words,omitempty"`
	VisionFoundation       string   `json:"vision_foundation,omitempty" bson:"vision_foundation,omitempty"`
	UpdatedAt              string   `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
	ModelScopeURL          string   `json:"modelscope_url,omitempty" bson:"modelscope_url,omitempty"`
}

// DisplayTitle picks the title shown to humans: the Chinese title when it
// differs from the English one, otherwise the English title, otherwise the id.
func (m ModelRecord) DisplayTitle() string {
	if m.TitleCN != "" && m.TitleCN != m.TitleEN {
		return m.TitleCN
	}
	if m.TitleEN != "" {
		return m.TitleEN
	}
	return m.ID
}

// CacheDocument is the persisted envelope written by the cache store.
// CachedAt is fractional unix seconds.
type CacheDocument struct {
	CachedAt float64       `json:"_cached_at"`
	Results  []ModelRecord `json:"results"`
}

// Age reports how long ago the document was written relative to now.
func (d CacheDocument) Age(now time.Time) time.Duration {
	written := time.Unix(0, int64(d.CachedAt*float64(time.Second)))
	return now.Sub(written)
}

// FetchOptions parameterizes one fetch-or-serve-from-cache call.
type FetchOptions struct {
	Limit          int
	Tag            string
	Task           string
	TTL            time.Duration
	ForceRefresh   bool
	DownloadImages bool
	PerTaskCache   bool
	// PageSize of 0 means derive it from Limit.
	PageSize int
	MaxPages int
	// CacheFile and ImagesDir, when set, bypass cache-key derivation.
	CacheFile string
	ImagesDir string
}

// Outcome is the result of a best-effort side effect. Callers log it and
// carry on; it is never turned into an error for the fetch caller.
type Outcome struct {
	OK     bool
	Reason string
}

// Succeeded returns a successful outcome.
func Succeeded() Outcome { return Outcome{OK: true} }

// Failed builds a failed outcome from a formatted reason.
func Failed(format string, args ...any) Outcome {
	return Outcome{Reason: fmt.Sprintf(format, args...)}
}

func (o Outcome) String() string {
	if o.OK {
		return "ok"
	}
	return "failed: " + o.Reason
}

// FetchStatus describes how the last fetch for a cache key ended.
type FetchStatus string

const (
	// FetchStatusOK means the last fetch produced a result list.
	FetchStatusOK FetchStatus = "OK"
	// FetchStatusFailed means aggregation failed and nothing was cached.
	FetchStatusFailed FetchStatus = "FAILED"
)

// StatusDocument records the last fetch for one cache key in the catalog
// database, so a restarted daemon can report freshness without re-fetching.
type StatusDocument struct {
	ID        string      `bson:"_id" json:"key"`
	Task      string      `bson:"task,omitempty" json:"task,omitempty"`
	Status    FetchStatus `bson:"status" json:"status"`
	Count     int         `bson:"count" json:"count"`
	Error     string      `bson:"error,omitempty" json:"error,omitempty"`
	UpdatedAt time.Time   `bson:"updatedAt" json:"updated_at"`
}

// CatalogEntry is the shape mirrored into the catalog collection. A model
// ranked under several tasks has one entry per task.
type CatalogEntry struct {
	Key         string    `bson:"_id"`
	ModelRecord `bson:",inline"`
	Task        string    `bson:"task"`
	FetchedAt   time.Time `bson:"fetchedAt"`
}

// CatalogKey is the catalog document id of a model ranked under a task.
func CatalogKey(task, id string) string {
	return task + "|" + id
}

// FetchEvent is published after every orchestrated fetch.
type FetchEvent struct {
	Key       string
	Task      string
	Count     int
	FromCache bool
	Err       error
}
