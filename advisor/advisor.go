package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// NominatimBaseURL is the public Nominatim API endpoint
	NominatimBaseURL = "https://nominatim.openstreetmap.org"
	// OverpassBaseURL is the public Overpass API endpoint
	OverpassBaseURL = "https://overpass-api.de/api/interpreter"
	// UserAgent is required by Nominatim usage policy
	UserAgent = "VisaAssessor/1.0"
	// Rate limit: 1 request per second for Nominatim
	minRequestInterval = time.Second

	// SearchRadiusMeters bounds the Overpass POI search
	SearchRadiusMeters = 25000
)

// Place is one advisor entry: an immigration firm, law office or
// endorsing body near the user, or a national fallback entry.
type Place struct {
	Name    string  `json:"name"`
	Kind    string  `json:"kind"` // lawyer, immigration, endorsing_body
	Website string  `json:"website,omitempty"`
	Phone   string  `json:"phone,omitempty"`
	Lat     float64 `json:"lat,omitempty"`
	Lon     float64 `json:"lon,omitempty"`
}

// Directory is the advisor listing returned to a session.
type Directory struct {
	Area   string  `json:"area"`
	Places []Place `json:"places"`
}

// Client queries OpenStreetMap with rate limiting shared across both APIs.
type Client struct {
	httpClient    *http.Client
	lastRequest   time.Time
	rateLimitLock sync.Mutex
}

// NewClient creates a new OSM client with rate limiting.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// enforceRateLimit ensures we don't exceed Nominatim's rate limit.
func (c *Client) enforceRateLimit() {
	c.rateLimitLock.Lock()
	defer c.rateLimitLock.Unlock()

	elapsed := time.Since(c.lastRequest)
	if elapsed < minRequestInterval {
		time.Sleep(minRequestInterval - elapsed)
	}
	c.lastRequest = time.Now()
}

type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		County  string `json:"county"`
		State   string `json:"state"`
		Country string `json:"country"`
	} `json:"address"`
}

// AreaName reverse-geocodes a coordinate into a human-readable area label.
func (c *Client) AreaName(ctx context.Context, lat, lon float64) (string, error) {
	c.enforceRateLimit()

	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%f", lat))
	params.Set("lon", fmt.Sprintf("%f", lon))
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")
	params.Set("zoom", "10")

	reqURL := fmt.Sprintf("%s/reverse?%s", NominatimBaseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("nominatim returned status %d: %s", resp.StatusCode, string(body))
	}

	var nomResp nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&nomResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	area := firstNonEmpty(nomResp.Address.City, nomResp.Address.Town,
		nomResp.Address.Village, nomResp.Address.County, nomResp.Address.State)
	if area == "" {
		area = nomResp.Address.Country
	}
	return area, nil
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat,omitempty"`
	Lon    float64           `json:"lon,omitempty"`
	Center *overpassCenter   `json:"center,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
}

type overpassCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NearbyAdvisors queries Overpass for immigration-related offices around a
// coordinate.
func (c *Client) NearbyAdvisors(ctx context.Context, lat, lon float64) ([]Place, error) {
	c.enforceRateLimit()

	query := fmt.Sprintf(`
[out:json][timeout:25];
(
  nwr["office"="lawyer"](around:%d,%f,%f);
  nwr["office"="immigration"](around:%d,%f,%f);
  nwr["lawyer"="immigration"](around:%d,%f,%f);
);
out center 30;`,
		SearchRadiusMeters, lat, lon,
		SearchRadiusMeters, lat, lon,
		SearchRadiusMeters, lat, lon)

	req, err := http.NewRequestWithContext(ctx, "POST", OverpassBaseURL,
		strings.NewReader("data="+url.QueryEscape(query)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("overpass returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return parseOverpass(body)
}

// parseOverpass extracts named advisor places from an Overpass payload.
func parseOverpass(body []byte) ([]Place, error) {
	var overpass overpassResponse
	if err := json.Unmarshal(body, &overpass); err != nil {
		return nil, fmt.Errorf("failed to decode overpass response: %w", err)
	}

	places := make([]Place, 0, len(overpass.Elements))
	for _, el := range overpass.Elements {
		name := el.Tags["name"]
		if name == "" {
			continue
		}

		kind := "lawyer"
		if el.Tags["office"] == "immigration" || el.Tags["lawyer"] == "immigration" {
			kind = "immigration"
		}

		place := Place{
			Name:    name,
			Kind:    kind,
			Website: firstNonEmpty(el.Tags["website"], el.Tags["contact:website"]),
			Phone:   firstNonEmpty(el.Tags["phone"], el.Tags["contact:phone"]),
			Lat:     el.Lat,
			Lon:     el.Lon,
		}
		if el.Center != nil {
			place.Lat = el.Center.Lat
			place.Lon = el.Center.Lon
		}
		places = append(places, place)
	}
	return places, nil
}

// firstNonEmpty returns the first non-empty string from the arguments.
func firstNonEmpty(strs ...string) string {
	for _, s := range strs {
		if s != "" {
			return s
		}
	}
	return ""
}

// StaticFallback returns the national directory used when geolocation is
// unavailable or the OSM lookup fails.
func StaticFallback() *Directory {
	return &Directory{
		Area: "United Kingdom",
		Places: []Place{
			{
				Name:    "The Law Society - Find a Solicitor",
				Kind:    "lawyer",
				Website: "https://solicitors.lawsociety.org.uk",
			},
			{
				Name:    "Immigration Advice Authority (OISC) Adviser Finder",
				Kind:    "immigration",
				Website: "https://portal.oisc.gov.uk/s/adviser-finder",
			},
			{
				Name:    "Tech Nation - Global Talent Endorsement",
				Kind:    "endorsing_body",
				Website: "https://technation.io/visa-tech-nation-visa-guide",
			},
			{
				Name:    "Arts Council England - Global Talent",
				Kind:    "endorsing_body",
				Website: "https://www.artscouncil.org.uk/global-talent-visa",
			},
			{
				Name:    "The Royal Society - Global Talent",
				Kind:    "endorsing_body",
				Website: "https://royalsociety.org/grants-schemes-awards/global-talent-visa",
			},
		},
	}
}
