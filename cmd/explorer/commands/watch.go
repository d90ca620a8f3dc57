package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/explorer"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/graph"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/net/wamp"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/session"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	brand  = color.New(color.FgHiGreen, color.Bold)
	subtle = color.New(color.FgHiBlack)
	info   = color.New(color.FgCyan)
	good   = color.New(color.FgGreen)
	warn   = color.New(color.FgYellow)
)

const watchHelp = `commands:
  o          load older units
  n          load newer units
  u, d       step up or down
  g TARGET   go to a unit hash or an address
  h UNIT     highlight a unit
  m          more transactions of the displayed address
  s TOP      move the scrollbar
  r HEIGHT   resize the viewport
  q          quit`

// NewWatchCmd returns the command that explores the DAG from the terminal
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "watch [unit|address]",
		Short:   "Explore the DAG through a relay",
		Args:    cobra.MaximumNArgs(1),
		PreRunE: loadWatchConfig,
		RunE:    runWatch,
	}
	AddWatchFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runWatch(cmd *cobra.Command, args []string) error {
	anchor := graph.LastAnchor()
	if len(args) > 0 {
		a, err := graph.ParseTarget(args[0])
		if err != nil {
			return err
		}
		anchor = a
	}

	logger := _config.Logger()

	cli, err := wamp.NewClient(_config.WAMPAddr,
		_config.WAMPRealm,
		_config.WAMPTLS,
		_config.CertFile(),
		_config.WAMPSkipVerify,
		_config.Timeout,
		logger.WithField("component", "wamp-client"))
	if err != nil {
		return err
	}
	defer cli.Close()

	sess := session.NewSession(_config.SessionConfig(), cli, logger.WithField("component", "session"))

	err = cli.Subscribe(func(graph.Node) { sess.Tip() }, sess.Stable)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		select {
		case <-cli.Done():
			logger.Warn("Relay connection closed")
			stop()
		case <-ctx.Done():
		}
	}()

	go func() {
		readCommands(os.Stdin, sess)
		stop()
	}()

	brand.Printf("explorer %s\n", sess.ID())
	subtle.Println(watchHelp)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sess.Run(ctx, anchor)
	})
	g.Go(func() error {
		for u := range sess.Updates() {
			printUpdate(os.Stdout, u)
		}
		return nil
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// readCommands forwards the commands typed on r to the session until r is
// closed or q is typed.
func readCommands(r io.Reader, sess *session.Session) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "q" {
			return
		}
		if line == "" {
			continue
		}
		cmd, err := parseCommand(line)
		if err != nil {
			warn.Println(err)
			continue
		}
		sess.Send(cmd)
	}
}

func parseCommand(line string) (explorer.Command, error) {
	fields := strings.Fields(line)
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch fields[0] {
	case "o":
		return explorer.RequestOlder{}, nil
	case "n":
		return explorer.RequestNewer{}, nil
	case "u":
		return explorer.Step{Up: true}, nil
	case "d":
		return explorer.Step{Up: false}, nil
	case "m":
		return explorer.MoreTransactions{}, nil
	case "g":
		if arg == "" {
			return nil, fmt.Errorf("g needs a unit hash or an address")
		}
		return explorer.NavigateTo{Target: arg}, nil
	case "h":
		if arg == "" {
			return nil, fmt.Errorf("h needs a unit hash")
		}
		return explorer.HighlightAndCenter{Unit: arg}, nil
	case "s", "r":
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return nil, fmt.Errorf("%s needs a number: %v", fields[0], err)
		}
		if fields[0] == "s" {
			return explorer.Scroll{Top: v}, nil
		}
		return explorer.Resize{Height: v}, nil
	}
	return nil, fmt.Errorf("unknown command %q", fields[0])
}

func printUpdate(w io.Writer, u session.Update) {
	for _, ev := range u.Events {
		switch e := ev.(type) {
		case *explorer.WindowEvent:
			printWindow(w, e)
		case *explorer.StabilityEvent:
			for _, s := range e.Units {
				c := good
				if s.OnMainChain {
					c = brand
				}
				c.Fprintf(w, "stable     %s\n", graph.ShortLabel(s.ID))
			}
		case *explorer.NavigateEvent:
			printNavigate(w, e)
		}
	}
	if u.Viewport != nil {
		subtle.Fprintf(w, "viewport   pan=%.0f scroll=%.0f/%.0f\n",
			u.Viewport.PanY, u.Viewport.ScrollTop, u.Viewport.ScrollExtent)
	}
}

func printWindow(w io.Writer, e *explorer.WindowEvent) {
	info.Fprintf(w, "%-10s +%d units, %d edges, %d phantoms [%d..%d]\n",
		e.Kind, len(e.Nodes), len(e.Edges), len(e.Phantoms), e.FirstOrdinal, e.LastOrdinal)

	for i, n := range e.Nodes {
		c := subtle
		if n.Stable {
			c = good
		}
		if n.OnMainChain {
			c = brand
		}
		x, y := 0.0, 0.0
		if i < len(e.Positions) {
			x, y = e.Positions[i].X, e.Positions[i].Y
		}
		c.Fprintf(w, "  %8d %s (%.0f, %.0f)\n", n.Ordinal, n.Label, x, y)
	}

	if len(e.Removed) > 0 {
		subtle.Fprintf(w, "  evicted %d\n", len(e.Removed))
	}
	if e.NoMoreOlder {
		subtle.Fprintln(w, "  genesis reached")
	}
	if e.NoMoreNewer {
		subtle.Fprintln(w, "  live edge")
	}
}

func printNavigate(w io.Writer, e *explorer.NavigateEvent) {
	switch {
	case e.NotFound:
		warn.Fprintf(w, "not found  %s\n", e.Message)
	case e.Unit != nil:
		u := e.Unit
		brand.Fprintf(w, "unit       %s\n", u.Unit)
		fmt.Fprintf(w, "  mci=%d level=%d witnessed=%d stable=%v\n",
			u.MainChainIndex, u.Level, u.WitnessedLevel, u.Stable)
		fmt.Fprintf(w, "  parents=%s\n", strings.Join(u.Parents, ","))
		fmt.Fprintf(w, "  children=%s\n", strings.Join(u.Children, ","))
	case e.Address != nil:
		a := e.Address
		brand.Fprintf(w, "address    %s\n", a.Address)
		for asset, balance := range a.Balance {
			fmt.Fprintf(w, "  %s: %d\n", asset, balance)
		}
		for _, tx := range a.Transactions {
			fmt.Fprintf(w, "  %s\n", tx.Unit)
		}
		if a.End {
			subtle.Fprintln(w, "  no more transactions")
		}
	case e.Center != nil:
		info.Fprintf(w, "highlight  %s (%.0f, %.0f)\n", e.Target, e.Center.X, e.Center.Y)
	}
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

// AddWatchFlags adds flags to the Watch command
func AddWatchFlags(cmd *cobra.Command) {
	addCommonFlags(cmd)

	cmd.Flags().Bool("wamp-skip-verify", _config.WAMPSkipVerify, "Do not verify the relay certificate")

	// Session
	cmd.Flags().Int("limit", _config.Limit, "Number of units in a window page")
	cmd.Flags().Int("max-retained", _config.MaxRetained, "Max number of loaded units, at least two pages, 0 keeps everything")
	cmd.Flags().Float64("viewport-height", _config.ViewportHeight, "Height of the viewport")
	cmd.Flags().Duration("stability-interval", _config.StabilityInterval, "Time between stability checks")
}

func loadWatchConfig(cmd *cobra.Command, args []string) error {
	if err := bindFlagsLoadViper(cmd); err != nil {
		return err
	}

	logConfig(logrus.Fields{
		"WAMPSkipVerify":    _config.WAMPSkipVerify,
		"Limit":             _config.Limit,
		"MaxRetained":       _config.MaxRetained,
		"ViewportHeight":    _config.ViewportHeight,
		"StabilityInterval": _config.StabilityInterval,
	})

	return nil
}
