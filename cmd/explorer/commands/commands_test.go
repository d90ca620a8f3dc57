package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/config"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/explorer"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/graph"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/session"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// newDefaultConfig resets the configuration shared by the commands.
func newDefaultConfig() {
	_config = config.NewDefaultConfig()
	viper.Reset()
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		line string
		cmd  explorer.Command
	}{
		{"o", explorer.RequestOlder{}},
		{"n", explorer.RequestNewer{}},
		{"u", explorer.Step{Up: true}},
		{"d", explorer.Step{Up: false}},
		{"m", explorer.MoreTransactions{}},
		{"g ABC", explorer.NavigateTo{Target: "ABC"}},
		{"h XYZ", explorer.HighlightAndCenter{Unit: "XYZ"}},
		{"s 120", explorer.Scroll{Top: 120}},
		{"r 600", explorer.Resize{Height: 600}},
	}

	for _, c := range cases {
		cmd, err := parseCommand(c.line)
		if err != nil {
			t.Fatalf("%s: %v", c.line, err)
		}
		if !reflect.DeepEqual(cmd, c.cmd) {
			t.Fatalf("%s: expected %#v, got %#v", c.line, c.cmd, cmd)
		}
	}

	for _, line := range []string{"g", "h", "s top", "x"} {
		if _, err := parseCommand(line); err == nil {
			t.Fatalf("%s should fail", line)
		}
	}
}

func TestPrintUpdate(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	printUpdate(&buf, session.Update{
		Events: []explorer.Event{
			&explorer.WindowEvent{
				Kind:         explorer.EventInitial,
				Nodes:        []graph.Node{graph.NewNode("unit-2-abcdef", 2), graph.NewNode("unit-1-abcdef", 1)},
				Positions:    []explorer.Position{{ID: "unit-2-abcdef", X: 10, Y: 20}, {ID: "unit-1-abcdef", X: 10, Y: 120}},
				FirstOrdinal: 1,
				LastOrdinal:  2,
				NoMoreOlder:  true,
			},
			&explorer.StabilityEvent{Units: []graph.StableUnit{{ID: "unit-1-abcdef"}}},
			&explorer.NavigateEvent{Target: "missing", NotFound: true, Message: "Unit not found"},
		},
	})

	out := buf.String()
	for _, s := range []string{
		"initial    +2 units, 0 edges, 0 phantoms [1..2]",
		"       2 unit-2-... (10, 20)",
		"genesis reached",
		"stable     unit-1-...",
		"not found  Unit not found",
	} {
		if !strings.Contains(out, s) {
			t.Fatalf("output should contain %q:\n%s", s, out)
		}
	}
}

func TestLoadConfigFile(t *testing.T) {
	defer newDefaultConfig()

	dir := t.TempDir()
	toml := "source = \"sqlite\"\nlimit = 40\nstability-interval = \"2s\"\n"
	if err := os.WriteFile(filepath.Join(dir, "explorer.toml"), []byte(toml), 0600); err != nil {
		t.Fatal(err)
	}

	newDefaultConfig()
	_config = config.NewTestConfig(t, logrus.DebugLevel)

	cmd := NewWatchCmd()
	if err := cmd.ParseFlags([]string{"--datadir", dir, "--limit", "60"}); err != nil {
		t.Fatal(err)
	}
	if err := loadWatchConfig(cmd, nil); err != nil {
		t.Fatal(err)
	}

	if _config.DataDir != dir {
		t.Fatalf("DataDir should be %s, not %s", dir, _config.DataDir)
	}
	if _config.Source != config.SourceSQLite {
		t.Fatalf("Source should come from the file, got %s", _config.Source)
	}
	if _config.Limit != 60 {
		t.Fatalf("the limit flag should override the file, got %d", _config.Limit)
	}
	if _config.StabilityInterval != 2*time.Second {
		t.Fatalf("StabilityInterval should be 2s, not %v", _config.StabilityInterval)
	}
	if _config.SQLitePath != filepath.Join(dir, config.DefaultSQLiteFile) {
		t.Fatalf("SQLitePath should move into the datadir, got %s", _config.SQLitePath)
	}
}
