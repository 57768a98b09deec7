package projector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

// Indent is the indentation of emitted documents.
const Indent = "    "

// Encode returns the indented JSON text of doc.
func Encode(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, doc); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// WriteJSON writes the indented JSON text of doc followed by a newline.
func WriteJSON(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", Indent)

	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	return nil
}

// Digest returns a short content hash of an encoded document.
func Digest(p []byte) string {
	return strconv.FormatUint(xxhash.Sum64(p), 16)
}

// WriteTable renders doc as a text table. Light documents print the summary only.
func WriteTable(w io.Writer, doc *Document) error {
	if !doc.Light {
		tw := tablewriter.NewWriter(w)
		tw.SetHeader([]string{"Address", "Server", "Mode", "Map", "Players", "Locked", "Version"})
		tw.SetBorder(true)
		tw.SetAutoWrapText(false)

		for _, e := range doc.Servers {
			locked := ""
			if e.Passworded {
				locked = "yes"
			}
			tw.Append([]string{
				e.IP + ":" + strconv.Itoa(int(e.Port)),
				e.ServerName,
				e.ModeName,
				e.MapName,
				fmt.Sprintf("%d/%d", e.PlayersCount, e.MaxPlayersCount),
				locked,
				e.Version,
			})
		}
		tw.Render()
	}

	_, err := fmt.Fprintf(w, "%s servers, %s players\n",
		humanize.Comma(int64(doc.ServersCount)), humanize.Comma(int64(doc.PlayersCount)))

	return err
}
