package rewards

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
)

// Index finds catalog entries by free text.
type Index interface {
	Sync(ctx context.Context, rewards []models.Reward) error
	Search(ctx context.Context, query string, limit int) ([]int, error)
}

type MemoryIndex struct {
	rewards []models.Reward
}

func (m *MemoryIndex) Sync(_ context.Context, rewards []models.Reward) error {
	m.rewards = append([]models.Reward(nil), rewards...)
	return nil
}

func (m *MemoryIndex) Search(_ context.Context, query string, limit int) ([]int, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	var ids []int
	for _, r := range m.rewards {
		if limit > 0 && len(ids) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(r.Name), q) || strings.EqualFold(string(r.Type), q) {
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}

type ESIndex struct {
	ES    *elasticsearch.Client
	Index string
}

func NewESClient(ctx context.Context, url, user, password string) (*elasticsearch.Client, error) {
	l := logging.FromContext(ctx).With("svc", "rewards.es")

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  user,
		Password:  password,
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

	l.Info("elasticsearch_connected", "url", url)
	return client, nil
}

func (x *ESIndex) Sync(ctx context.Context, rewards []models.Reward) error {
	for _, r := range rewards {
		body, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode reward %d: %w", r.ID, err)
		}
		res, err := x.ES.Index(
			x.Index,
			bytes.NewReader(body),
			x.ES.Index.WithContext(ctx),
			x.ES.Index.WithDocumentID(strconv.Itoa(r.ID)),
			x.ES.Index.WithRefresh("true"),
		)
		if err != nil {
			return fmt.Errorf("index reward %d: %w", r.ID, err)
		}
		res.Body.Close()
		if res.IsError() {
			return fmt.Errorf("index reward %d: %s", r.ID, res.Status())
		}
	}
	return nil
}

func (x *ESIndex) Search(ctx context.Context, query string, limit int) ([]int, error) {
	if limit <= 0 {
		limit = 10
	}
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"name^2", "type"},
				"fuzziness": "AUTO",
			},
		},
		"size": limit,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("search encode: %w", err)
	}

	res, err := x.ES.Search(
		x.ES.Search.WithContext(ctx),
		x.ES.Search.WithIndex(x.Index),
		x.ES.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Hits []struct {
				Source models.Reward `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("search decode: %w", err)
	}

	ids := make([]int, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		ids = append(ids, h.Source.ID)
	}
	return ids, nil
}

// Search resolves index hits against the catalog and flags affordability for user.
func (e *Engine) Search(ctx context.Context, idx Index, user *models.User, query string, limit int) ([]Availability, error) {
	ids, err := idx.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Availability, 0, len(ids))
	for _, id := range ids {
		r, ok := e.Catalog.Find(id)
		if !ok {
			continue
		}
		out = append(out, Availability{Reward: r, CanRedeem: user != nil && user.LoyaltyPoints >= r.Points})
	}
	return out, nil
}
