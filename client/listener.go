package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/Manimaran10/task-manager/domain"
)

const reconnectDelay = time.Second

// Listener maintains the websocket connection to the push channel and feeds
// every frame into the reconciler. Dropped connections are redialed after a
// short delay; a rejected handshake (bad or expired token) stops the loop so
// the caller can reauthenticate.
type Listener struct {
	url        string
	token      string
	reconciler *Reconciler
	dialer     *websocket.Dialer
}

func NewListener(url, token string, rec *Reconciler) *Listener {
	return &Listener{
		url:        url,
		token:      token,
		reconciler: rec,
		dialer:     websocket.DefaultDialer,
	}
}

// Run dials and reads until ctx is cancelled. It returns nil on cancellation
// and an authentication error when the server refuses the handshake.
func (l *Listener) Run(ctx context.Context) error {
	for {
		err := l.listen(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, domain.ErrAuthenticationFailed):
			return err
		case err != nil:
			log.WithError(err).Debug("push connection lost, redialing")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	header := http.Header{"Authorization": []string{"Bearer " + l.token}}
	conn, resp, err := l.dialer.DialContext(ctx, l.url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("push handshake rejected: %w", domain.ErrAuthenticationFailed)
		}
		return fmt.Errorf("dial push channel: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read push channel: %w", err)
		}
		var ev domain.Event
		if err := sonic.ConfigStd.Unmarshal(msg, &ev); err != nil {
			log.WithError(err).Warn("skipping malformed push frame")
			continue
		}
		l.reconciler.Apply(ev)
	}
}
