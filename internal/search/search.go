// Package search keeps the Elasticsearch product index and runs catalog
// full-text queries against it.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/game_store/internal/models"
)

type Index struct {
	es    *elasticsearch.Client
	index string
}

func NewClient(ctx context.Context, url, user, password string) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  user,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: new client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch: info: %s: %s", res.Status(), body)
	}
	return client, nil
}

func NewIndex(es *elasticsearch.Client, index string) *Index {
	return &Index{es: es, index: index}
}

type document struct {
	ID          uint   `json:"id"`
	Title       string `json:"titulo"`
	Description string `json:"descripcion"`
	Platform    string `json:"plataforma"`
	Genre       string `json:"genero"`
	Developer   string `json:"desarrollador"`
	Price       string `json:"precio"`
}

func newDocument(p *models.Product) document {
	return document{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Platform:    p.Platform,
		Genre:       p.Genre,
		Developer:   p.Developer,
		Price:       p.Price.StringFixed(2),
	}
}

const mapping = `{
  "mappings": {
    "properties": {
      "id":            {"type": "long"},
      "titulo":        {"type": "text"},
      "descripcion":   {"type": "text"},
      "plataforma":    {"type": "keyword"},
      "genero":        {"type": "keyword"},
      "desarrollador": {"type": "text"},
      "precio":        {"type": "scaled_float", "scaling_factor": 100}
    }
  }
}`

// EnsureIndex creates the index with its mapping when it does not exist.
func (i *Index) EnsureIndex(ctx context.Context) error {
	res, err := i.es.Indices.Exists([]string{i.index}, i.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch: index exists: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = i.es.Indices.Create(i.index,
		i.es.Indices.Create.WithContext(ctx),
		i.es.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch: create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch: create index: %s", res.Status())
	}
	return nil
}

func searchBody(query string, from, size int) map[string]any {
	return map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"titulo^2", "descripcion", "desarrollador", "genero", "plataforma"},
				"fuzziness": "AUTO",
			},
		},
		"_source": []string{"id"},
		"from":    from,
		"size":    size,
	}
}

// Search returns the total hit count and the matching product ids in
// relevance order.
func (i *Index) Search(ctx context.Context, query string, from, size int) (int64, []uint, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(searchBody(query, from, size)); err != nil {
		return 0, nil, fmt.Errorf("elasticsearch: encode query: %w", err)
	}

	res, err := i.es.Search(
		i.es.Search.WithContext(ctx),
		i.es.Search.WithIndex(i.index),
		i.es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("elasticsearch: search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("elasticsearch: search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("elasticsearch: decode response: %w", err)
	}

	ids := make([]uint, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		id, err := strconv.ParseUint(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	return r.Hits.Total.Value, ids, nil
}

func (i *Index) IndexProduct(ctx context.Context, p *models.Product) error {
	data, err := json.Marshal(newDocument(p))
	if err != nil {
		return fmt.Errorf("elasticsearch: marshal product: %w", err)
	}

	res, err := i.es.Index(i.index, bytes.NewReader(data),
		i.es.Index.WithContext(ctx),
		i.es.Index.WithDocumentID(strconv.FormatUint(uint64(p.ID), 10)),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch: index product %d: %w", p.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch: index product %d: %s", p.ID, res.Status())
	}
	return nil
}

// DeleteProduct removes the document. A missing document is not an error.
func (i *Index) DeleteProduct(ctx context.Context, id uint) error {
	res, err := i.es.Delete(i.index, strconv.FormatUint(uint64(id), 10), i.es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch: delete product %d: %w", id, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("elasticsearch: delete product %d: %s", id, res.Status())
	}
	return nil
}
