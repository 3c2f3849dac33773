// Package inspect renders persisted proxy records for operators.
package inspect

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/proxy"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/state"
)

type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatTable, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// Records writes the records of network, or of every network if it is empty.
func Records(w io.Writer, store state.Store, network string, format Format) error {
	recs, err := store.List(network)
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}
	if format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if recs == nil {
			recs = []*proxy.ProxyRecord{}
		}
		return enc.Encode(recs)
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Network", "Name", "Proxy", "Implementation", "Version", "Verified", "Upgrades"})
	table.SetAutoWrapText(false)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	for _, rec := range recs {
		table.Append(row(rec))
	}
	table.Render()
	return nil
}

func row(rec *proxy.ProxyRecord) []string {
	version := "-"
	if rec.CurrentVersion != nil {
		version = rec.CurrentVersion.String()
	}
	upgrades := 0
	if len(rec.History) > 0 {
		upgrades = len(rec.History) - 1
	}
	return []string{
		rec.Network,
		rec.Name,
		rec.ProxyAddress.Hex(),
		rec.CurrentImplementation.Hex(),
		version,
		strconv.FormatBool(rec.Verified),
		strconv.Itoa(upgrades),
	}
}

// History writes the implementations a proxy pointed to, oldest first.
func History(w io.Writer, rec *proxy.ProxyRecord) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Version", "Implementation", "Tx", "Forced"})
	table.SetAutoWrapText(false)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	for i, h := range rec.History {
		version := "-"
		if h.Version != nil {
			version = h.Version.String()
		}
		table.Append([]string{
			strconv.Itoa(i),
			version,
			h.Implementation.Hex(),
			h.TxHash.Hex(),
			strconv.FormatBool(h.Forced),
		})
	}
	table.Render()
}
