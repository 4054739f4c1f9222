package repository

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

const realtimeReconnectDelay = 5 * time.Second

type sseEvent struct {
	Name string
	Data string
}

// sseReader splits a text/event-stream body into events
type sseReader struct {
	scanner *bufio.Scanner
}

func newSSEReader(r io.Reader) *sseReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &sseReader{scanner: scanner}
}

func (r *sseReader) Next() (sseEvent, error) {
	var ev sseEvent
	var data []string
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			if ev.Name == "" && len(data) == 0 {
				continue
			}
			ev.Data = strings.Join(data, "\n")
			return ev, nil
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			ev.Name = value
		case "data":
			data = append(data, value)
		}
	}
	if err := r.scanner.Err(); err != nil {
		return ev, err
	}
	return ev, io.EOF
}

// Subscribe listens on the PocketBase realtime API and re-queries the collection on
// every record event. Each (re)connect also delivers a fresh snapshot, so delivery is
// at-least-once.
func (s *PocketBaseStore) Subscribe(ctx context.Context, collection string, filter Filter, onChange func([]Document)) (func(), error) {
	docs, err := s.Query(ctx, collection, filter)
	if err != nil {
		return nil, err
	}
	onChange(docs)

	subCtx, cancel := context.WithCancel(ctx)
	var once sync.Once
	unsubscribe := func() { once.Do(cancel) }

	go func() {
		for {
			err := s.listen(subCtx, collection, filter, onChange)
			if subCtx.Err() != nil {
				return
			}
			log.Printf("❌ Realtime stream for %s ended: %v, reconnecting", collection, err)
			select {
			case <-subCtx.Done():
				return
			case <-time.After(realtimeReconnectDelay):
			}
		}
	}()

	return unsubscribe, nil
}

func (s *PocketBaseStore) listen(ctx context.Context, collection string, filter Filter, onChange func([]Document)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/realtime", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	s.addAuthHeader(req)

	// the shared client has a timeout that would cut the stream
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("realtime connect: %s", resp.Status)
	}

	events := newSSEReader(resp.Body)
	connect, err := events.Next()
	if err != nil {
		return err
	}
	if connect.Name != "PB_CONNECT" {
		return fmt.Errorf("unexpected first realtime event %q", connect.Name)
	}
	var hello struct {
		ClientID string `json:"clientId"`
	}
	if err := json.Unmarshal([]byte(connect.Data), &hello); err != nil {
		return fmt.Errorf("failed to decode PB_CONNECT: %w", err)
	}

	topic := collection + "/*"
	body := map[string]any{"clientId": hello.ClientID, "subscriptions": []string{topic}}
	if _, err := s.do(ctx, http.MethodPost, s.baseURL+"/api/realtime", body, nil); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	log.Printf("🔍 Subscribed to realtime topic %s", topic)

	if docs, err := s.Query(ctx, collection, filter); err == nil {
		onChange(docs)
	}

	for {
		ev, err := events.Next()
		if err != nil {
			return err
		}
		if ev.Name != topic && ev.Name != collection {
			continue
		}
		docs, err := s.Query(ctx, collection, filter)
		if err != nil {
			log.Printf("❌ Re-query of %s after realtime event failed: %v", collection, err)
			continue
		}
		onChange(docs)
	}
}
