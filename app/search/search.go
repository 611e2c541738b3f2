// Package search maintains the Elasticsearch index behind the public user
// directory.
package search

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/config"
)

const requestTimeout = 3 * time.Second

var ErrNotConfigured = errors.New("elasticsearch is not configured")

const indexMapping = `{
  "mappings": {
    "properties": {
      "id":          {"type": "long"},
      "name":        {"type": "text"},
      "bio":         {"type": "text"},
      "country":     {"type": "text"},
      "city":        {"type": "text"},
      "verified_at": {"type": "date"}
    }
  }
}`

type document struct {
	ID         uint64    `json:"id"`
	Name       string    `json:"name"`
	Bio        string    `json:"bio,omitempty"`
	Country    string    `json:"country,omitempty"`
	City       string    `json:"city,omitempty"`
	VerifiedAt time.Time `json:"verified_at"`
}

type Index struct {
	client *elasticsearch.Client
	name   string
}

func NewClient(addrs []string, username, password string) (*elasticsearch.Client, error) {
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addrs,
		Username:  username,
		Password:  password,
		Transport: &http.Transport{
			MaxIdleConnsPerHost:   10,
			ResponseHeaderTimeout: 5 * time.Second,
			TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
			DialContext:           (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		},
	})
}

// New returns ErrNotConfigured when no addresses are set.
func New(cfg config.SearchConfig) (*Index, error) {
	if len(cfg.Addresses) == 0 {
		return nil, ErrNotConfigured
	}
	client, err := NewClient(cfg.Addresses, cfg.Username, cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return NewIndex(client, cfg.Index), nil
}

func NewIndex(client *elasticsearch.Client, name string) *Index {
	return &Index{client: client, name: name}
}

// EnsureIndex creates the index with its mapping when it does not exist yet.
func (i *Index) EnsureIndex(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := i.client.Indices.Exists([]string{i.name}, i.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return err
	}
	drain(res)
	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("check index %s: %s", i.name, res.Status())
	}

	res, err = i.client.Indices.Create(i.name,
		i.client.Indices.Create.WithContext(ctx),
		i.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return err
	}
	defer drain(res)
	if res.IsError() {
		return fmt.Errorf("create index %s: %s", i.name, res.Status())
	}
	return nil
}

func (i *Index) Index(ctx context.Context, entry *entity.DirectoryEntry) error {
	doc := document{
		ID:         entry.Account.ID,
		Name:       entry.Account.Name,
		VerifiedAt: entry.Account.EmailVerifiedAt.Time,
	}
	if p := entry.Profile; p != nil {
		doc.Bio = p.Bio.String
		doc.Country = p.Country.String
		doc.City = p.City.String
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req := esapi.IndexRequest{
		Index:      i.name,
		DocumentID: strconv.FormatUint(doc.ID, 10),
		Body:       bytes.NewReader(body),
		Refresh:    "false",
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return err
	}
	defer drain(res)
	if res.IsError() {
		return fmt.Errorf("index account %d: %s", doc.ID, res.Status())
	}
	return nil
}

// Remove succeeds when the document is already absent.
func (i *Index) Remove(ctx context.Context, accountID uint64) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req := esapi.DeleteRequest{
		Index:      i.name,
		DocumentID: strconv.FormatUint(accountID, 10),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return err
	}
	defer drain(res)
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("remove account %d: %s", accountID, res.Status())
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID string `json:"_id"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search returns matching account ids ordered by relevance.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]uint64, error) {
	body, err := json.Marshal(map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"name^2", "city", "country", "bio"},
				"fuzziness": "AUTO",
			},
		},
		"_source": false,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.name),
		i.client.Search.WithBody(bytes.NewReader(body)),
		i.client.Search.WithSize(limit),
	)
	if err != nil {
		return nil, err
	}
	defer drain(res)
	if res.IsError() {
		return nil, fmt.Errorf("search %s: %s", i.name, res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	ids := make([]uint64, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		id, err := strconv.ParseUint(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func drain(res *esapi.Response) {
	if res != nil && res.Body != nil {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}
}
