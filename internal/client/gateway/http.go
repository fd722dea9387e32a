package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/todosutiles/kitsync/internal/common"
	"github.com/todosutiles/kitsync/internal/logging"
	"github.com/todosutiles/kitsync/internal/wire"
)

const requestTimeout = 12 * time.Second

// HTTPGateway implements Gateway over the server's REST surface plus a
// websocket snapshot feed.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
	dialer  *websocket.Dialer
	log     logging.Logger
}

func NewHTTPGateway(baseURL string, log logging.Logger) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		dialer:  websocket.DefaultDialer,
		log:     log,
	}
}

// PingURL returns the URL the connectivity monitor should probe.
func (g *HTTPGateway) PingURL() string {
	return g.baseURL + "/healthz"
}

func (g *HTTPGateway) Ping(ctx context.Context) error {
	_, _, err := g.do(ctx, http.MethodGet, "/healthz", nil)
	return err
}

func (g *HTTPGateway) Create(ctx context.Context, record wire.Record) error {
	// The store assigns identifiers; never send one.
	record.ID = ""

	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	status, _, err := g.do(ctx, http.MethodPost, "/api/records", body)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("create failed: status %d", status)
	}
	return nil
}

func (g *HTTPGateway) UpdateField(ctx context.Context, id, field string, value any) error {
	body, err := json.Marshal(wire.FieldEdit{Field: field, Value: value})
	if err != nil {
		return fmt.Errorf("failed to encode edit: %w", err)
	}

	status, _, err := g.do(ctx, http.MethodPatch, "/api/records/"+url.PathEscape(id), body)
	if err != nil {
		return err
	}

	switch status {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("update failed: status %d", status)
	}
}

func (g *HTTPGateway) List(ctx context.Context) ([]wire.Record, error) {
	status, body, err := g.do(ctx, http.MethodGet, "/api/records", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("list failed: status %d", status)
	}

	var records []wire.Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	return records, nil
}

// Subscribe dials the websocket feed and forwards every snapshot message to
// onSnapshot until the subscription is cancelled or the connection drops.
func (g *HTTPGateway) Subscribe(ctx context.Context, onSnapshot func([]wire.Record)) (func(), error) {
	conn, _, err := g.dialer.DialContext(ctx, g.wsURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrOffline, err)
	}

	var once sync.Once
	done := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = conn.Close()
		})
	}

	go func() {
		defer cancel()
		for {
			var msg wire.SnapshotMessage
			if err := conn.ReadJSON(&msg); err != nil {
				select {
				case <-done:
				default:
					g.log.Warn(ctx, "snapshot feed closed", "error", err)
				}
				return
			}

			if msg.Type != wire.MessageSnapshot {
				continue
			}

			// A message that raced the cancellation must not reach the
			// caller.
			select {
			case <-done:
				return
			default:
				onSnapshot(msg.Records)
			}
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	return cancel, nil
}

func (g *HTTPGateway) wsURL() string {
	u := g.baseURL + "/ws"
	if strings.HasPrefix(u, "https://") {
		return "wss://" + strings.TrimPrefix(u, "https://")
	}
	return "ws://" + strings.TrimPrefix(u, "http://")
}

// do performs a request with a bounded timeout and returns the status code
// and the full response body.
func (g *HTTPGateway) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", common.ErrOffline, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, data, nil
}
