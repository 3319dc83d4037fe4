package stremio

import "encoding/json"

type ResourceName string

const (
	ResourceNameAddonCatalog ResourceName = "addon_catalog"
	ResourceNameCatalog      ResourceName = "catalog"
	ResourceNameMeta         ResourceName = "meta"
	ResourceNameStream       ResourceName = "stream"
	ResourceNameSubtitles    ResourceName = "subtitles"
)

type Resource struct {
	Name       ResourceName  `json:"name"`
	Types      []ContentType `json:"types,omitempty"`
	IDPrefixes []string      `json:"idPrefixes,omitempty"`
}

// Resources may appear on the wire either as a bare string or as a
// structured object.
func (r *Resource) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		r.Name = ResourceName(name)
		return nil
	}
	type resource Resource
	var res resource
	if err := json.Unmarshal(data, &res); err != nil {
		return err
	}
	*r = Resource(res)
	return nil
}

type Catalog struct {
	Id   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

type Manifest struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Version     string        `json:"version,omitempty"`
	Resources   []Resource    `json:"resources"`
	Types       []ContentType `json:"types,omitempty"`
	Catalogs    []Catalog     `json:"catalogs,omitempty"`
	IDPrefixes  []string      `json:"idPrefixes,omitempty"`

	BehaviorHints *ManifestBehaviorHints `json:"behaviorHints,omitempty"`
}

type ManifestBehaviorHints struct {
	Adult        bool `json:"adult,omitempty"`
	P2P          bool `json:"p2p,omitempty"`
	Configurable bool `json:"configurable,omitempty"`
}

type Meta struct {
	Id          string      `json:"id"`
	Type        string      `json:"type"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Year        string      `json:"year,omitempty"`
	ReleaseInfo string      `json:"releaseInfo,omitempty"`
	Videos      []MetaVideo `json:"videos,omitempty"`
}

type MetaVideo struct {
	Id      string `json:"id"`
	Title   string `json:"title,omitempty"`
	Season  int    `json:"season,omitempty"`
	Episode int    `json:"episode,omitempty"`
}

type MetaHandlerResponse struct {
	Meta Meta `json:"meta"`
}

type CatalogHandlerResponse struct {
	Metas []Meta `json:"metas"`
}
