// Package search keeps an Elasticsearch index of products and queries it.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/marketplace/internal/models"
)

const DefaultIndex = "products"

type Config struct {
	URL      string
	User     string
	Password string
	Index    string
}

type Index struct {
	es    *elasticsearch.Client
	index string
}

type document struct {
	ID          uint   `json:"id"`
	Category    string `json:"category"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceRange  string `json:"price_range"`
	UserID      uint   `json:"user_id"`
}

// New connects to Elasticsearch and checks that the cluster answers.
func New(ctx context.Context, cfg Config) (*Index, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.User,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch info: %s: %s", res.Status(), body)
	}

	index := cfg.Index
	if index == "" {
		index = DefaultIndex
	}
	return &Index{es: client, index: index}, nil
}

func (i *Index) IndexProduct(ctx context.Context, p *models.Product) error {
	body, err := json.Marshal(document{
		ID:          p.ID,
		Category:    p.Category,
		Name:        p.Name,
		Description: p.Description,
		PriceRange:  p.PriceRange,
		UserID:      p.UserID,
	})
	if err != nil {
		return fmt.Errorf("encode product: %w", err)
	}

	res, err := i.es.Index(i.index, bytes.NewReader(body),
		i.es.Index.WithContext(ctx),
		i.es.Index.WithDocumentID(docID(p.ID)),
	)
	if err != nil {
		return fmt.Errorf("index product %d: %w", p.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index product %d: %s", p.ID, res.Status())
	}
	return nil
}

// DeleteProduct removes the document. A document that is already gone is fine.
func (i *Index) DeleteProduct(ctx context.Context, id uint) error {
	res, err := i.es.Delete(i.index, docID(id), i.es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete product %d: %s", id, res.Status())
	}
	return nil
}

// Search runs a fuzzy match over name, description and category and returns
// the total hit count and the matching product ids in rank order.
func (i *Index) Search(ctx context.Context, query string, from, size int) (int64, []uint, error) {
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"name^2", "description", "category"},
				"fuzziness": "AUTO",
			},
		},
		"from":    from,
		"size":    size,
		"_source": []string{"id"},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("encode query: %w", err)
	}

	res, err := i.es.Search(
		i.es.Search.WithContext(ctx),
		i.es.Search.WithIndex(i.index),
		i.es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("decode search response: %w", err)
	}

	ids := make([]uint, len(r.Hits.Hits))
	for n, hit := range r.Hits.Hits {
		ids[n] = hit.Source.ID
	}
	return r.Hits.Total.Value, ids, nil
}

func docID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
