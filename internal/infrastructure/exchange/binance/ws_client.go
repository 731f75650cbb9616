package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cashcarry/internal/application/port"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const feedName = "BINANCE"

// MarkPriceFeed <symbol>@markPrice combined stream, reconnecting with backoff
type MarkPriceFeed struct {
	wsURL string // e.g. wss://fstream.binance.com
}

var _ port.PriceFeed = (*MarkPriceFeed)(nil)

func NewMarkPriceFeed(wsURL string) *MarkPriceFeed {
	return &MarkPriceFeed{wsURL: strings.TrimSpace(wsURL)}
}

func (f *MarkPriceFeed) Name() string { return feedName }

type binanceCombined struct {
	Stream string           `json:"stream"`
	Data   binanceMarkPrice `json:"data"`
}

// both cases of "p" and "e" are sent; each needs its own field or
// encoding/json folds them onto the same one
type binanceMarkPrice struct {
	EventType   string `json:"e"`
	EventTime   int64  `json:"E"`
	Symbol      string `json:"s"`
	MarkPrice   string `json:"p"`
	SettlePrice string `json:"P"`
	FundingRate string `json:"r"`
}

func (f *MarkPriceFeed) Subscribe(ctx context.Context, symbols []string) (<-chan port.Tick, error) {
	wsURL, err := buildCombinedURL(f.wsURL, symbols)
	if err != nil {
		return nil, err
	}

	out := make(chan port.Tick, 1024)
	go f.run(ctx, wsURL, out)
	return out, nil
}

func buildCombinedURL(base string, symbols []string) (string, error) {
	if base == "" {
		return "", errors.New("binance ws_url empty")
	}
	if len(symbols) == 0 {
		return "", errors.New("symbols empty")
	}

	streams := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		streams = append(streams, fmt.Sprintf("%s@markPrice", s))
	}
	if len(streams) == 0 {
		return "", errors.New("no valid symbols")
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Path = "/stream"
	u.RawQuery = "streams=" + strings.Join(streams, "/")
	return u.String(), nil
}

// parseTick decodes one combined-stream frame
func parseTick(b []byte) (port.Tick, bool) {
	var msg binanceCombined
	if err := json.Unmarshal(b, &msg); err != nil {
		log.Error().Str("feed", feedName).Err(err).Msg("json unmarshal failed")
		return port.Tick{}, false
	}
	sym := strings.ToUpper(msg.Data.Symbol)
	pxs := strings.TrimSpace(msg.Data.MarkPrice)
	if sym == "" || pxs == "" {
		return port.Tick{}, false
	}
	pxn, _ := strconv.ParseFloat(pxs, 64)
	fr, _ := strconv.ParseFloat(msg.Data.FundingRate, 64)
	ts := msg.Data.EventTime
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	return port.Tick{
		Symbol:      sym,
		PriceStr:    pxs,
		PriceNum:    pxn,
		FundingRate: fr,
		Ts:          ts,
	}, true
}

func (f *MarkPriceFeed) run(ctx context.Context, wsURL string, out chan<- port.Tick) {
	defer close(out)

	backoff := 500 * time.Millisecond
	maxBackoff := 10 * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		log.Info().Str("feed", f.Name()).Str("url", wsURL).Msg("ws connecting")
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		conn, _, err := websocket.DefaultDialer.DialContext(cctx, wsURL, nil)
		cancel()
		if err != nil {
			log.Error().Str("feed", f.Name()).Err(err).Msg("ws dial failed")
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = minDur(backoff*2, maxBackoff)
			continue
		}

		backoff = 500 * time.Millisecond
		log.Info().Str("feed", f.Name()).Msg("ws connected")

		err = readLoop(ctx, conn, func(b []byte) {
			tick, ok := parseTick(b)
			if !ok {
				return
			}
			select {
			case out <- tick:
			case <-ctx.Done():
			}
		})

		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}

		log.Warn().Str("feed", f.Name()).Err(err).Msg("ws disconnected, reconnecting")
		if !sleepCtx(ctx, backoff) {
			return
		}
		backoff = minDur(backoff*2, maxBackoff)
	}
}

func readLoop(ctx context.Context, conn *websocket.Conn, onMsg func([]byte)) error {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(25 * time.Second)
	defer pingTicker.Stop()

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			onMsg(b)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case <-pingTicker.C:
			_ = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
