package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"tokenizermanager/internal/console"
	"tokenizermanager/internal/model"
)

type printNotifier struct {
	mu     sync.Mutex
	out    io.Writer
	failed bool
}

func (n *printNotifier) print(prefix, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.out, "%s %s\n", prefix, msg)
}

func (n *printNotifier) Success(msg string) { n.print("✓", msg) }
func (n *printNotifier) Warning(msg string) { n.print("!", msg) }

func (n *printNotifier) Error(msg string) {
	n.mu.Lock()
	n.failed = true
	n.mu.Unlock()
	n.print("✗", msg)
}

func (n *printNotifier) err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failed {
		return errFailed
	}
	return nil
}

// promptConfirmer 在终端询问 y/N
type promptConfirmer struct {
	in  io.Reader
	out io.Writer
	yes bool
}

func (c promptConfirmer) Confirm(title, content string, onOK func()) {
	if c.yes {
		onOK()
		return
	}
	fmt.Fprintf(c.out, "%s\n%s [y/N] ", title, content)
	line, _ := bufio.NewReader(c.in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		onOK()
	default:
		fmt.Fprintln(c.out, "已取消")
	}
}

func printTokenizers(w io.Writer, list []model.TokenizerInfo) {
	if len(list) == 0 {
		fmt.Fprintln(w, "没有分词器")
		return
	}
	fmt.Fprintf(w, "%-6s %-40s %-8s %-20s %-20s %10s\n", "CH", "MODEL", "STATUS", "CHANNEL", "LAST UPDATED", "SIZE")
	fmt.Fprintln(w, strings.Repeat("─", 110))
	for _, t := range list {
		fmt.Fprintf(w, "%-6d %-40s %-8s %-20s %-20s %10s\n",
			t.ChannelID, t.ModelName, t.Status.Normalize(), t.ChannelName, console.FormatTime(t.LastUpdated), t.Size)
	}
	fmt.Fprintf(w, "共 %d 个分词器\n", len(list))
}

func printResults(w io.Writer, results []model.UpdateResult) {
	for _, r := range results {
		fmt.Fprintf(w, "[%s] %s", console.ResultLabel(r), r.ModelName)
		if r.Message != "" {
			fmt.Fprintf(w, "  %s", r.Message)
		}
		fmt.Fprintln(w)
	}
}
