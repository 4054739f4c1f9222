// Package repository provides PocketBase REST API implementations
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"campus-locator/internal/models"
)

const pocketBasePageSize = 200

// PocketBaseStore implements DocumentStore on top of the PocketBase records API
type PocketBaseStore struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// NewPocketBaseStore creates a store authenticated with a superuser token
func NewPocketBaseStore(baseURL, authToken string) *PocketBaseStore {
	return &PocketBaseStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authToken:  authToken,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *PocketBaseStore) addAuthHeader(req *http.Request) {
	if s.authToken != "" {
		req.Header.Set("Authorization", s.authToken)
	}
}

func (s *PocketBaseStore) recordsURL(collection string) string {
	return fmt.Sprintf("%s/api/collections/%s/records", s.baseURL, url.PathEscape(collection))
}

// do sends a JSON request and decodes the response into out when given
func (s *PocketBaseStore) do(ctx context.Context, method, apiURL string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	s.addAuthHeader(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Printf("❌ PocketBase %s %s: %v", method, apiURL, err)
		return 0, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, models.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("pocketbase %s %s: %s - %s", method, apiURL, resp.Status, string(respBody))
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (s *PocketBaseStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	apiURL := fmt.Sprintf("%s/%s", s.recordsURL(collection), url.PathEscape(id))

	var record map[string]any
	if _, err := s.do(ctx, http.MethodGet, apiURL, nil, &record); err != nil {
		return nil, err
	}
	doc := recordToDocument(record)
	return &doc, nil
}

func (s *PocketBaseStore) Set(ctx context.Context, collection, id string, fields Fields, mergeFields bool) error {
	_, err := s.Get(ctx, collection, id)
	switch {
	case err == nil:
		// PocketBase has no replace, so merge=false degrades to a full PATCH
		return s.Update(ctx, collection, id, fields)
	case errors.Is(err, models.ErrNotFound):
		body := merge(Fields{"id": id}, fields)
		if _, err := s.do(ctx, http.MethodPost, s.recordsURL(collection), body, nil); err != nil {
			return fmt.Errorf("failed to create %s/%s: %w", collection, id, err)
		}
		log.Printf("💾 Created %s/%s", collection, id)
		return nil
	default:
		return err
	}
}

func (s *PocketBaseStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	apiURL := fmt.Sprintf("%s/%s", s.recordsURL(collection), url.PathEscape(id))
	if _, err := s.do(ctx, http.MethodPatch, apiURL, fields, nil); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *PocketBaseStore) Delete(ctx context.Context, collection, id string) error {
	apiURL := fmt.Sprintf("%s/%s", s.recordsURL(collection), url.PathEscape(id))
	if _, err := s.do(ctx, http.MethodDelete, apiURL, nil, nil); err != nil && !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *PocketBaseStore) Query(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	var docs []Document
	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("page", strconv.Itoa(page))
		params.Set("perPage", strconv.Itoa(pocketBasePageSize))
		if expr := filterExpression(filter); expr != "" {
			params.Set("filter", expr)
		}
		apiURL := s.recordsURL(collection) + "?" + params.Encode()

		var result struct {
			Page       int              `json:"page"`
			TotalPages int              `json:"totalPages"`
			Items      []map[string]any `json:"items"`
		}
		if _, err := s.do(ctx, http.MethodGet, apiURL, nil, &result); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to query %s: %w", collection, err)
		}
		for _, item := range result.Items {
			docs = append(docs, recordToDocument(item))
		}
		if page >= result.TotalPages {
			break
		}
	}
	return docs, nil
}

// filterExpression renders an equality filter in the PocketBase filter syntax
func filterExpression(filter Filter) string {
	if len(filter) == 0 {
		return ""
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := filter[k].(type) {
		case bool:
			parts = append(parts, fmt.Sprintf("%s=%t", k, v))
		case int, int64, float64:
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		default:
			escaped := strings.ReplaceAll(fmt.Sprint(v), "'", "\\'")
			parts = append(parts, fmt.Sprintf("%s='%s'", k, escaped))
		}
	}
	return strings.Join(parts, " && ")
}

// recordToDocument strips the system fields PocketBase adds to every record
func recordToDocument(record map[string]any) Document {
	id, _ := record["id"].(string)
	fields := Fields{}
	for k, v := range record {
		switch k {
		case "id", "collectionId", "collectionName", "created", "updated", "expand":
			continue
		}
		fields[k] = v
	}
	return Document{ID: id, Fields: fields}
}

// PocketBaseIdentity implements IdentityProvider with a PocketBase auth collection
type PocketBaseIdentity struct {
	store      *PocketBaseStore
	collection string
}

// NewPocketBaseIdentity creates an identity provider backed by the given auth collection
func NewPocketBaseIdentity(store *PocketBaseStore, collection string) *PocketBaseIdentity {
	if collection == "" {
		collection = "users"
	}
	return &PocketBaseIdentity{store: store, collection: collection}
}

type pocketBaseAuthRecord struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (p *PocketBaseIdentity) SignIn(ctx context.Context, email, password string) (models.Identity, error) {
	apiURL := fmt.Sprintf("%s/api/collections/%s/auth-with-password", p.store.baseURL, url.PathEscape(p.collection))
	body := map[string]string{"identity": email, "password": password}

	var result struct {
		Token  string               `json:"token"`
		Record pocketBaseAuthRecord `json:"record"`
	}
	status, err := p.store.do(ctx, http.MethodPost, apiURL, body, &result)
	if err != nil {
		if status == http.StatusBadRequest || status == http.StatusUnauthorized || errors.Is(err, models.ErrNotFound) {
			return models.Identity{}, models.ErrInvalidCredentials
		}
		return models.Identity{}, fmt.Errorf("failed to sign in: %w", err)
	}
	return models.Identity{UID: result.Record.ID, Email: result.Record.Email}, nil
}

func (p *PocketBaseIdentity) SignUp(ctx context.Context, email, password string) (models.Identity, error) {
	body := map[string]any{
		"email":           email,
		"password":        password,
		"passwordConfirm": password,
		"emailVisibility": true,
	}

	var record pocketBaseAuthRecord
	status, err := p.store.do(ctx, http.MethodPost, p.store.recordsURL(p.collection), body, &record)
	if err != nil {
		if status == http.StatusBadRequest && strings.Contains(err.Error(), "validation_not_unique") {
			return models.Identity{}, models.ErrAccountExists
		}
		return models.Identity{}, fmt.Errorf("failed to sign up: %w", err)
	}
	log.Printf("✅ Registered identity %s (%s)", record.ID, email)
	return models.Identity{UID: record.ID, Email: record.Email}, nil
}

// SignOut is a no-op: PocketBase auth tokens are stateless
func (p *PocketBaseIdentity) SignOut(ctx context.Context, uid string) error {
	return nil
}

func (p *PocketBaseIdentity) Lookup(ctx context.Context, uid string) (models.Identity, error) {
	doc, err := p.store.Get(ctx, p.collection, uid)
	if err != nil {
		return models.Identity{}, err
	}
	return models.Identity{UID: doc.ID, Email: doc.Fields.String("email")}, nil
}
