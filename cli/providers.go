package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/richinex/steward/llm"
)

// ProviderCatalog exposes the provider table of a client.
type ProviderCatalog interface {
	Descriptor(name string) (llm.Descriptor, bool)
	FreeOnly() bool
}

var _ ProviderCatalog = (*llm.Client)(nil)

// PrintProviders writes the provider table: kind, key count and the
// models the catalog marks free.
func PrintProviders(catalog ProviderCatalog, names []string, defaultProvider string, out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tKIND\tKEYS\tFREE MODELS")
	for _, name := range names {
		d, ok := catalog.Descriptor(name)
		if !ok {
			continue
		}
		label := name
		if name == defaultProvider {
			label += " (default)"
		}
		var free []string
		for _, m := range d.Models {
			if d.IsFree(m.ID) {
				free = append(free, m.ID)
			}
		}
		freeList := "-"
		if len(free) > 0 {
			freeList = strings.Join(free, ", ")
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", label, d.Kind, len(d.APIKeys), freeList)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write provider table: %w", err)
	}
	if catalog.FreeOnly() {
		fmt.Fprintln(out, "\nfree_only is on: paid models are rejected.")
	}
	return nil
}
