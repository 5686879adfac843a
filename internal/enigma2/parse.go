package enigma2

import (
	"regexp"
	"strings"
)

// getservices output is flat: a list of <e2service> blocks with a name and a
// reference each. A regexp extractor is enough and tolerates the HTML-ish
// garbage some images emit around the list.
var (
	serviceBlockRe = regexp.MustCompile(`(?s)<e2service>(.*?)</e2service>`)
	serviceNameRe  = regexp.MustCompile(`<e2servicename>(.*?)</e2servicename>`)
	serviceRefRe   = regexp.MustCompile(`<e2servicereference>(.*?)</e2servicereference>`)
)

const (
	// bouquetMarker appears in the reference of every bouquet container.
	bouquetMarker = "FROM BOUQUET"
	// separatorPrefix starts the names of visual separators in bouquet lists.
	separatorPrefix = "---"
	// notApplicable is the placeholder name OpenWebif uses for unnamed entries.
	notApplicable = "<n/a>"
	// markerServiceRef is the service type of label/marker rows (1:64:...), which are not playable.
	markerServiceRef = "1:64:"
)

type serviceEntry struct {
	name string
	ref  string
}

// scanServices yields name/ref pairs in document order. Blocks missing either
// field are skipped; fields never leak across blocks.
func scanServices(xml string) []serviceEntry {
	blocks := serviceBlockRe.FindAllStringSubmatch(xml, -1)
	out := make([]serviceEntry, 0, len(blocks))
	for _, b := range blocks {
		inner := b[1]
		nm := serviceNameRe.FindStringSubmatch(inner)
		rm := serviceRefRe.FindStringSubmatch(inner)
		if nm == nil || rm == nil {
			continue
		}
		name := strings.TrimSpace(nm[1])
		ref := strings.TrimSpace(rm[1])
		if name == "" || ref == "" {
			continue
		}
		out = append(out, serviceEntry{name: name, ref: ref})
	}
	return out
}

// ParseBouquets extracts bouquet containers from a /web/getservices response.
// DisplayName is left empty; the directory stamps it.
func ParseBouquets(xml string) []Bouquet {
	entries := scanServices(xml)
	out := make([]Bouquet, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.name, separatorPrefix) || e.name == notApplicable {
			continue
		}
		if !strings.Contains(e.ref, bouquetMarker) {
			continue
		}
		out = append(out, Bouquet{Name: e.name, Ref: e.ref, ID: BouquetID(e.ref)})
	}
	return out
}

// ParseChannels extracts playable services from a /web/getservices?sRef=... response.
func ParseChannels(xml string) []Channel {
	entries := scanServices(xml)
	out := make([]Channel, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.name, separatorPrefix) {
			continue
		}
		if strings.Contains(e.ref, markerServiceRef) {
			continue
		}
		out = append(out, Channel{
			Name:       e.name,
			ServiceRef: e.ref,
			HD:         strings.Contains(strings.ToLower(e.name), "hd"),
		})
	}
	return out
}
