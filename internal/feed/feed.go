package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Query names one watched path on the feed endpoint. Path addresses
// either a single document ("users/abc") or a collection ("alerts");
// OrderBy/Descending/Limit only apply to collections and are enforced
// server-side.
type Query struct {
	Path       string
	OrderBy    string
	Descending bool
	Limit      int
}

// Subscription is one live listener on one path. Every message on
// Snapshots is a full replacement snapshot of the watched document or
// collection, never a diff. At most one error is ever delivered; after
// that the subscription is dead and the snapshot channel is closed.
// There is no reconnection: recovery means a fresh Subscribe.
type Subscription struct {
	conn      *websocket.Conn
	snapshots chan json.RawMessage
	errc      chan error
	done      chan struct{}
	closeOnce sync.Once
}

// Subscribe opens a websocket to the feed endpoint and starts streaming
// snapshots for the query. The caller owns the subscription and must
// Close it on teardown; dropping it without Close leaks the connection.
func Subscribe(ctx context.Context, baseURL string, q Query) (*Subscription, error) {
	if q.Path == "" {
		return nil, fmt.Errorf("feed: empty query path")
	}

	endpoint := strings.TrimRight(baseURL, "/") + "/ws/listen"
	params := url.Values{}
	params.Set("path", q.Path)
	if q.OrderBy != "" {
		params.Set("order_by", q.OrderBy)
		params.Set("descending", strconv.FormatBool(q.Descending))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("feed: dial %s: %w", q.Path, err)
	}

	sub := &Subscription{
		conn:      conn,
		snapshots: make(chan json.RawMessage, 1),
		errc:      make(chan error, 1),
		done:      make(chan struct{}),
	}
	go sub.readLoop()
	return sub, nil
}

// Snapshots delivers full replacement snapshots in server order. The
// channel is closed when the subscription dies or is closed.
func (s *Subscription) Snapshots() <-chan json.RawMessage { return s.snapshots }

// Err delivers the single terminal error, if the feed fails. Nothing is
// ever sent here on a clean Close.
func (s *Subscription) Err() <-chan error { return s.errc }

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

func (s *Subscription) readLoop() {
	defer close(s.snapshots)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				// Deliberate Close, not a feed failure.
			default:
				s.errc <- fmt.Errorf("feed: connection lost: %w", err)
				s.Close()
			}
			return
		}
		select {
		case s.snapshots <- json.RawMessage(data):
		case <-s.done:
			return
		}
	}
}
