// internal/enrich/tmdb.go
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valpere/CatalogHarvest/internal/config"
	"github.com/valpere/CatalogHarvest/internal/errors"
)

const maxCast = 10

// TMDBClient talks to a TMDB-compatible REST API.
type TMDBClient struct {
	baseURL      string
	imageBaseURL string
	posterSize   string
	backdropSize string
	apiKey       string
	language     string
	httpClient   *http.Client
}

// NewTMDBClient creates a client from the enrichment settings. A nil
// httpClient gets one with cfg.Timeout.
func NewTMDBClient(cfg config.EnrichmentConfig, httpClient *http.Client) *TMDBClient {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &TMDBClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		imageBaseURL: strings.TrimRight(cfg.ImageBaseURL, "/"),
		posterSize:   cfg.PosterSize,
		backdropSize: cfg.BackdropSize,
		apiKey:       cfg.APIKey,
		language:     cfg.Language,
		httpClient:   httpClient,
	}
}

type searchResponse struct {
	Results []struct {
		ID int `json:"id"`
	} `json:"results"`
}

type detailsResponse struct {
	ID               int     `json:"id"`
	Title            string  `json:"title"`
	Name             string  `json:"name"`
	OriginalTitle    string  `json:"original_title"`
	OriginalName     string  `json:"original_name"`
	OriginalLanguage string  `json:"original_language"`
	Overview         string  `json:"overview"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	VoteAverage      float64 `json:"vote_average"`
	Runtime          int     `json:"runtime"`
	EpisodeRunTime   []int   `json:"episode_run_time"`
	Genres           []struct {
		Name string `json:"name"`
	} `json:"genres"`
	Videos struct {
		Results []struct {
			Key  string `json:"key"`
			Site string `json:"site"`
			Type string `json:"type"`
		} `json:"results"`
	} `json:"videos"`
	Credits struct {
		Cast []struct {
			Name string `json:"name"`
		} `json:"cast"`
	} `json:"credits"`
}

// Lookup searches by title and takes the first result's details.
func (c *TMDBClient) Lookup(ctx context.Context, q Query) (*Metadata, error) {
	mediaType := q.MediaType
	if mediaType != "tv" {
		mediaType = "movie"
	}

	params := url.Values{}
	params.Set("query", q.Title)
	if q.Year > 0 {
		yearParam := "year"
		if mediaType == "tv" {
			yearParam = "first_air_date_year"
		}
		params.Set(yearParam, strconv.Itoa(q.Year))
	}

	var search searchResponse
	if err := c.get(ctx, "/search/"+mediaType, params, &search); err != nil {
		return nil, err
	}
	if len(search.Results) == 0 {
		return nil, ErrNotFound
	}

	params = url.Values{}
	params.Set("append_to_response", "videos,credits")
	var details detailsResponse
	if err := c.get(ctx, fmt.Sprintf("/%s/%d", mediaType, search.Results[0].ID), params, &details); err != nil {
		return nil, err
	}
	return c.toMetadata(details), nil
}

func (c *TMDBClient) toMetadata(d detailsResponse) *Metadata {
	md := &Metadata{
		ProviderID:    d.ID,
		Title:         firstOf(d.Title, d.Name),
		OriginalTitle: firstOf(d.OriginalTitle, d.OriginalName),
		Overview:      strings.TrimSpace(d.Overview),
		Language:      d.OriginalLanguage,
		Poster:        c.ImageURL(c.posterSize, d.PosterPath),
		Backdrop:      c.ImageURL(c.backdropSize, d.BackdropPath),
		Runtime:       d.Runtime,
		Rating:        d.VoteAverage / 2,
	}
	if md.Runtime == 0 && len(d.EpisodeRunTime) > 0 {
		md.Runtime = d.EpisodeRunTime[0]
	}
	for _, g := range d.Genres {
		if name := strings.TrimSpace(g.Name); name != "" {
			md.Genres = append(md.Genres, name)
		}
	}
	for _, v := range d.Videos.Results {
		if strings.EqualFold(v.Site, "YouTube") && strings.EqualFold(v.Type, "Trailer") && v.Key != "" {
			md.Trailer = "https://www.youtube.com/watch?v=" + v.Key
			break
		}
	}
	for _, member := range d.Credits.Cast {
		if len(md.Cast) == maxCast {
			break
		}
		if member.Name != "" {
			md.Cast = append(md.Cast, member.Name)
		}
	}
	return md
}

// ImageURL composes a full image URL from a relative provider path.
func (c *TMDBClient) ImageURL(size, path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.imageBaseURL + "/" + size + path
}

func (c *TMDBClient) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if c.language != "" {
		params.Set("language", c.language)
	}
	// v4 read tokens go in the Authorization header, v3 keys in the query
	bearer := strings.HasPrefix(c.apiKey, "eyJ")
	if c.apiKey != "" && !bearer {
		params.Set("api_key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return errors.New(errors.KindEnrichment, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if bearer {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.New(errors.KindEnrichment, "request "+path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.New(errors.KindEnrichment, "request "+path,
			fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.New(errors.KindEnrichment, "decode "+path, err)
	}
	return nil
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
