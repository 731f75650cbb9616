package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"cashcarry/internal/application/port"
	"cashcarry/internal/domain/model"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiDim    = "\033[2m"
)

func colorize(s, c string) string { return c + s + ansiReset }

// Sink prints triggered opportunities as timestamped snapshot lines
type Sink struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
}

var _ port.SignalSink = (*Sink)(nil)

func NewSink(out io.Writer, color bool) *Sink {
	return &Sink{out: out, color: color}
}

func (s *Sink) PublishSignal(ctx context.Context, opp *model.Opportunity) error {
	return s.WriteSnapshot(opp.Snapshot.TakenAt, FormatOpportunity(opp, s.color))
}

// WriteSnapshot one line, framed by blank lines so it stands out between log output
func (s *Sink) WriteSnapshot(ts time.Time, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.out, "\n%s %s\n\n", ts.Local().Format("2006-01-02 15:04:05"), line)
	return err
}

// FormatOpportunity renders one evaluation on a single line.
func FormatOpportunity(opp *model.Opportunity, color bool) string {
	paint := func(v, c string) string {
		if !color {
			return v
		}
		return colorize(v, c)
	}

	snap := opp.Snapshot
	sig := opp.Signal

	var sb strings.Builder
	sb.WriteString(paint("[CARRY] ", ansiDim))
	fmt.Fprintf(&sb, "%s/%s perp=%s fut=%s", snap.PerpSymbol, snap.FuturesSymbol,
		formatPrice(snap.PerpPrice), formatPrice(snap.FuturesPrice))

	basisCol := ansiGreen
	if sig.BasisPct < 0 {
		basisCol = ansiRed
	}
	sb.WriteString(" basis=")
	sb.WriteString(paint(fmt.Sprintf("%+.4f%%", sig.BasisPct*100), basisCol))
	fmt.Fprintf(&sb, " (%+.5f%%/d, %dd)", sig.BasisPerDay*100, snap.DaysToExpiry)
	fmt.Fprintf(&sb, " funding=%.5f%%/d ratio=%.2f", snap.DailyFundingRate*100, sig.FundingToBasisRatio)

	if sig.Triggered {
		sb.WriteString(" ")
		sb.WriteString(paint("TRIGGERED", ansiYellow))
		if r := opp.Reasons(); len(r) > 0 {
			sb.WriteString(paint(" ("+strings.Join(r, "; ")+")", ansiDim))
		}
	}
	return sb.String()
}

func formatPrice(v float64) string {
	if v == 0 {
		return "--"
	}
	return fmt.Sprintf("%.2f", v)
}
