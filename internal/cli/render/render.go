// Package render formats CLI command output in the format an operator asks
// for.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Table renders headers/rows in fmt according to format ("table" is the
// default). count reports len(rows) regardless of the requested columns.
func Table(w io.Writer, format string, headers []string, rows [][]string) error {
	switch format {
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write(headers); err != nil {
			return err
		}
		if err := cw.WriteAll(rows); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()

	case "json":
		return json.NewEncoder(w).Encode(rowsToMaps(headers, rows))

	case "yaml":
		return yaml.NewEncoder(w).Encode(rowsToMaps(headers, rows))

	case "count":
		_, err := fmt.Fprintln(w, strconv.Itoa(len(rows)))
		return err

	default: // "table"
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, joinTab(headers))
		for _, r := range rows {
			fmt.Fprintln(tw, joinTab(r))
		}
		return tw.Flush()
	}
}

func rowsToMaps(headers []string, rows [][]string) []map[string]string {
	out := make([]map[string]string, 0, len(rows))
	for _, r := range rows {
		m := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(r) {
				m[h] = r[i]
			}
		}
		out = append(out, m)
	}
	return out
}

func joinTab(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += "\t"
		}
		out += c
	}
	return out
}
