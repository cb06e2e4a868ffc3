package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kelseyhightower/envconfig"

	"github.com/nazeru/order-console-go/internal/order/domain"
	"github.com/nazeru/order-console-go/pkg/receipt"
)

type env struct {
	BaseURL string        `envconfig:"CONSOLE_BASE_URL" default:"http://localhost:8080"`
	Timeout time.Duration `envconfig:"CLI_TIMEOUT" default:"10s"`
	Refresh time.Duration `envconfig:"CLI_REFRESH" default:"2s"`
}

type inputKind int

const (
	inputNone inputKind = iota
	inputMinutes
	inputReason
)

type model struct {
	api       *api
	refresh   time.Duration
	orders    []domain.Order
	autoPrint bool
	busy      bool
	selected  int
	input     inputKind
	buffer    string
	status    string
	pending   bool
}

func initialModel(a *api, refresh time.Duration) model {
	return model{api: a, refresh: refresh, status: "Loading..."}
}

type windowMsg struct {
	orders    []domain.Order
	autoPrint bool
	busy      bool
	err       error
}

type actionMsg struct {
	status string
}

type tickMsg time.Time

func (m model) Init() tea.Cmd {
	return tea.Batch(m.fetchCmd(), m.tickCmd())
}

func (m model) tickCmd() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) fetchCmd() tea.Cmd {
	return func() tea.Msg {
		w, err := m.api.window(context.Background())
		return windowMsg{orders: w.Orders, autoPrint: w.AutoPrint, busy: w.Busy, err: err}
	}
}

func (m model) current() (domain.Order, bool) {
	if m.selected < 0 || m.selected >= len(m.orders) {
		return domain.Order{}, false
	}
	return m.orders[m.selected], true
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.input != inputNone {
			return m.updateInput(msg)
		}
		return m.updateList(msg)
	case tickMsg:
		return m, tea.Batch(m.fetchCmd(), m.tickCmd())
	case windowMsg:
		if msg.err != nil {
			m.status = "Refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.orders, m.autoPrint, m.busy = msg.orders, msg.autoPrint, msg.busy
		if m.selected >= len(m.orders) {
			m.selected = max(len(m.orders)-1, 0)
		}
	case actionMsg:
		m.pending = false
		m.status = msg.status
		return m, m.fetchCmd()
	}
	return m, nil
}

func (m model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(m.orders)-1 {
			m.selected++
		}
	case "r":
		return m, m.fetchCmd()
	case "a":
		return m.act(func(ctx context.Context) string {
			if err := m.api.setAutoPrint(ctx, !m.autoPrint); err != nil {
				return "Auto-print toggle failed: " + err.Error()
			}
			return fmt.Sprintf("Auto-print %s", onOff(!m.autoPrint))
		})
	case "c", "x", "d", "p":
		o, ok := m.current()
		if !ok || m.pending {
			return m, nil
		}
		switch msg.String() {
		case "c":
			m.input, m.buffer = inputMinutes, ""
		case "x":
			m.input, m.buffer = inputReason, ""
		case "d":
			return m.act(func(ctx context.Context) string {
				out, err := m.api.complete(ctx, o.ID)
				return outcomeStatus("Completed", o, out.Warnings, err)
			})
		case "p":
			return m.act(func(ctx context.Context) string {
				res, err := m.api.print(ctx, o.ID)
				if err != nil {
					return "Print failed: " + err.Error()
				}
				if res.Error != "" {
					return fmt.Sprintf("Print #%s failed (%s): %s", o.DisplayNumber(), res.Method, res.Error)
				}
				return fmt.Sprintf("Printed #%s via %s", o.DisplayNumber(), res.Method)
			})
		}
	}
	return m, nil
}

func (m model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.input, m.buffer = inputNone, ""
		return m, nil
	case tea.KeyBackspace:
		if len(m.buffer) > 0 {
			r := []rune(m.buffer)
			m.buffer = string(r[:len(r)-1])
		}
		return m, nil
	case tea.KeySpace:
		m.buffer += " "
		return m, nil
	case tea.KeyRunes:
		m.buffer += string(msg.Runes)
		return m, nil
	case tea.KeyEnter:
	default:
		return m, nil
	}

	o, ok := m.current()
	kind, text := m.input, m.buffer
	m.input, m.buffer = inputNone, ""
	if !ok {
		return m, nil
	}
	if kind == inputMinutes {
		minutes, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil {
			m.status = "Delivery time must be a number of minutes"
			return m, nil
		}
		return m.act(func(ctx context.Context) string {
			out, err := m.api.confirm(ctx, o.ID, minutes)
			return outcomeStatus("Confirmed", o, out.Warnings, err)
		})
	}
	return m.act(func(ctx context.Context) string {
		out, err := m.api.cancel(ctx, o.ID, text)
		return outcomeStatus("Cancelled", o, out.Warnings, err)
	})
}

func (m model) act(fn func(ctx context.Context) string) (tea.Model, tea.Cmd) {
	m.pending = true
	m.status = "Working..."
	return m, func() tea.Msg {
		return actionMsg{status: fn(context.Background())}
	}
}

func outcomeStatus(verb string, o domain.Order, warnings []string, err error) string {
	if err != nil {
		return fmt.Sprintf("#%s: %v", o.DisplayNumber(), err)
	}
	s := fmt.Sprintf("%s #%s", verb, o.DisplayNumber())
	if len(warnings) > 0 {
		s += " (warnings: " + strings.Join(warnings, "; ") + ")"
	}
	return s
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func (m model) View() string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "Order console  auto-print: %s", onOff(m.autoPrint))
	if m.busy {
		fmt.Fprint(b, "  [operation in flight]")
	}
	fmt.Fprint(b, "\n\n")
	if len(m.orders) == 0 {
		fmt.Fprintln(b, "  no orders")
	}
	for i, o := range m.orders {
		marker := " "
		if i == m.selected {
			marker = ">"
		}
		fmt.Fprintf(b, " %s %-8s %-10s %10s  %s  %s\n", marker, o.DisplayNumber(), o.Status,
			receipt.Amount(o.Amount), o.CreatedAt.Local().Format("15:04"), o.StoreName)
	}
	fmt.Fprintln(b, "")
	switch m.input {
	case inputMinutes:
		fmt.Fprintf(b, "Delivery minutes: %s_\n", m.buffer)
	case inputReason:
		fmt.Fprintf(b, "Cancel reason: %s_\n", m.buffer)
	}
	fmt.Fprintf(b, "Status: %s\n", m.status)
	fmt.Fprintln(b, "\nControls: up/down select, c confirm, x cancel, d complete, p print, a toggle auto-print, r refresh, q quit")
	return b.String()
}

func main() {
	list := flag.Bool("list", false, "print the order window and exit")
	confirm := flag.String("confirm", "", "order id to confirm")
	minutes := flag.Int("minutes", 0, "delivery time for -confirm")
	cancel := flag.String("cancel", "", "order id to cancel")
	reason := flag.String("reason", "", "reason for -cancel")
	complete := flag.String("complete", "", "order id to complete")
	printID := flag.String("print", "", "order id to print")
	autoPrint := flag.String("auto-print", "", "set auto-print: on|off")
	flag.Parse()

	var e env
	if err := envconfig.Process("", &e); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	a := newAPI(e.BaseURL, e.Timeout)
	ctx := context.Background()

	var status string
	switch {
	case *list:
		w, err := a.window(ctx)
		if err != nil {
			fail(err)
		}
		for _, o := range w.Orders {
			fmt.Printf("%s\t%s\t%s\t%s\n", o.ID, o.DisplayNumber(), o.Status, receipt.Amount(o.Amount))
		}
		return
	case *confirm != "":
		out, err := a.confirm(ctx, domain.OrderID(*confirm), *minutes)
		if err != nil {
			fail(err)
		}
		status = outcomeStatus("Confirmed", out.Order, out.Warnings, nil)
	case *cancel != "":
		out, err := a.cancel(ctx, domain.OrderID(*cancel), *reason)
		if err != nil {
			fail(err)
		}
		status = outcomeStatus("Cancelled", out.Order, out.Warnings, nil)
	case *complete != "":
		out, err := a.complete(ctx, domain.OrderID(*complete))
		if err != nil {
			fail(err)
		}
		status = outcomeStatus("Completed", out.Order, out.Warnings, nil)
	case *printID != "":
		res, err := a.print(ctx, domain.OrderID(*printID))
		if err != nil {
			fail(err)
		}
		status = fmt.Sprintf("method=%s fellBack=%t %s%s", res.Method, res.FellBack, res.Message, res.Error)
	case *autoPrint != "":
		if err := a.setAutoPrint(ctx, *autoPrint == "on"); err != nil {
			fail(err)
		}
		status = "auto-print " + *autoPrint
	}
	if status != "" {
		fmt.Println(status)
		return
	}

	p := tea.NewProgram(initialModel(a, e.Refresh))
	if _, err := p.Run(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
