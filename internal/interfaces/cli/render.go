package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/pricing/backend/internal/application/collection"
	"github.com/pricing/backend/internal/domain/pricing"
	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// printer groups the digits of quantities, which run into the billions for traffic
var printer = message.NewPrinter(language.English)

func day(t time.Time) string {
	return t.Format(pricing.DateLayout)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func quantity(v any) string {
	return printer.Sprint(number.Decimal(v))
}

func renderTable(w io.Writer, data pterm.TableData) error {
	out, err := pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithHeaderStyle(pterm.NewStyle(pterm.FgLightCyan)).
		WithData(data).
		Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

func renderMessage(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprint(w, pterm.Success.Sprintfln(format, args...))
	return err
}

func renderIngest(w io.Writer, r *collection.IngestResult) error {
	if err := renderMessage(w, "Collected network usage of %s", day(r.Day)); err != nil {
		return err
	}
	return renderTable(w, [][]string{
		{"Addresses", "Resolved", "Unresolved", "Rows", "Bytes", "Deprecated"},
		{
			quantity(r.Addresses),
			quantity(r.Resolved),
			quantity(r.Unresolved),
			quantity(r.Rows),
			quantity(r.Bytes),
			quantity(r.Deprecated),
		},
	})
}

func renderTree(w io.Writer, tree *pricing.Tree) error {
	if tree.Len() == 0 {
		_, err := fmt.Fprint(w, pterm.Warning.Sprintln("No ventures"))
		return err
	}

	var list pterm.LeveledList
	tree.Walk(func(v *pricing.Venture, depth int) {
		text := fmt.Sprintf("%s (%d)", v.Name, v.VentureID)
		if v.Department != "" {
			text += " - " + v.Department
		}
		list = append(list, pterm.LeveledListItem{Level: depth, Text: text})
	})

	out, err := pterm.DefaultTree.WithRoot(putils.TreeFromLeveledList(list)).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}
