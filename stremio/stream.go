package stremio

type ContentType string

const (
	ContentTypeMovie   ContentType = "movie"
	ContentTypeSeries  ContentType = "series"
	ContentTypeAnime   ContentType = "anime"
	ContentTypeTV      ContentType = "tv"
	ContentTypeChannel ContentType = "channel"
)

type StreamBehaviorHints struct {
	BingeGroup       string              `json:"bingeGroup,omitempty"`
	CountryWhitelist []string            `json:"countryWhitelist,omitempty"`
	Filename         string              `json:"filename,omitempty"`
	NotWebReady      bool                `json:"notWebReady,omitempty"`
	ProxyHeaders     *StreamProxyHeaders `json:"proxyHeaders,omitempty"`
	VideoHash        string              `json:"videoHash,omitempty"`
	VideoSize        int64               `json:"videoSize,omitempty"`
}

type StreamProxyHeaders struct {
	Request  map[string]string `json:"request,omitempty"`
	Response map[string]string `json:"response,omitempty"`
}

// Stream is the wire record returned by upstream addons.
// At least one of URL / ExternalURL / YoutubeID / InfoHash is present.
type Stream struct {
	URL         string `json:"url,omitempty"`
	YoutubeID   string `json:"ytId,omitempty"`
	InfoHash    string `json:"infoHash,omitempty"`
	FileIndex   int    `json:"fileIdx,omitempty"`
	ExternalURL string `json:"externalUrl,omitempty"`

	Name        string     `json:"name,omitempty"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Subtitles   []Subtitle `json:"subtitles,omitempty"`
	Sources     []string   `json:"sources,omitempty"`

	BehaviorHints *StreamBehaviorHints `json:"behaviorHints,omitempty"`
}

type StreamHandlerResponse struct {
	Streams []Stream `json:"streams"`
}

type Subtitle struct {
	Id   string `json:"id"`
	URL  string `json:"url"`
	Lang string `json:"lang"`
}

type SubtitlesHandlerResponse struct {
	Subtitles []Subtitle `json:"subtitles"`
}
