package domain

import "encoding/json"

// ICEServer holds STUN/TURN server configuration. URLs accepts either a
// single string or a list on decode, as browsers do. URL is the legacy
// single-url field some TURN providers still return.
type ICEServer struct {
	URL        string  `json:"url,omitempty"`
	URLs       URLList `json:"urls"`
	Username   string  `json:"username,omitempty"`
	Credential string  `json:"credential,omitempty"`
}

// AllURLs returns URLs, falling back to the legacy URL field.
func (s ICEServer) AllURLs() []string {
	if len(s.URLs) > 0 {
		return s.URLs
	}
	if s.URL != "" {
		return []string{s.URL}
	}
	return nil
}

// URLList is a list of ICE URLs that also decodes from a bare string.
type URLList []string

func (l *URLList) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*l = URLList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*l = many
	return nil
}
