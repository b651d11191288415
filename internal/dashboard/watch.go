package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/chess-agent-arena/pkg/arenadto"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// WatchState is the connection state reported by Watch.
type WatchState string

const (
	WatchConnecting   WatchState = "connecting"
	WatchConnected    WatchState = "connected"
	WatchReconnecting WatchState = "reconnecting"
	WatchFailed       WatchState = "failed"
	WatchClosed       WatchState = "closed"
)

// ErrStopWatch may be returned by OnEvent to end Watch without an error.
var ErrStopWatch = errors.New("stop watching")

type WatchOptions struct {
	// MaxReconnects is how many consecutive failed dials are tolerated.
	MaxReconnects  int
	ReconnectDelay time.Duration
	OnState        func(WatchState)
	OnEvent        func(arenadto.LiveEvent) error
}

// LiveURL builds the websocket address of a game from the dashboard base URL.
func LiveURL(baseURL, gameID string) string {
	base := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/api/games/" + gameID + "/live"
}

// Watch follows a live feed until ctx is done or OnEvent stops it, redialing
// after dropped connections.
func Watch(ctx context.Context, url string, opts WatchOptions) error {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 100 * time.Millisecond
	}
	setState := func(s WatchState) {
		if opts.OnState != nil {
			opts.OnState(s)
		}
	}

	failures := 0
	setState(WatchConnecting)
	for {
		err := watchOnce(ctx, url, opts, func() {
			failures = 0
			setState(WatchConnected)
		})
		if errors.Is(err, ErrStopWatch) || ctx.Err() != nil {
			setState(WatchClosed)
			return nil
		}
		failures++
		if failures > opts.MaxReconnects {
			setState(WatchFailed)
			return fmt.Errorf("watch %s: %w", url, err)
		}
		setState(WatchReconnecting)
		t := time.NewTimer(time.Duration(failures) * opts.ReconnectDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			setState(WatchClosed)
			return nil
		case <-t.C:
		}
	}
}

func watchOnce(ctx context.Context, url string, opts WatchOptions, connected func()) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	connected()

	for {
		var ev arenadto.LiveEvent
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			return err
		}
		if opts.OnEvent == nil {
			continue
		}
		if err := opts.OnEvent(ev); err != nil {
			return err
		}
	}
}
