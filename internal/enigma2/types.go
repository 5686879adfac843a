// Package enigma2 talks to the OpenWebif interface of an Enigma2 receiver:
// lineup XML parsing, bouquet/channel records and the receiver URL layout.
package enigma2

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Bouquet is a channel grouping on the receiver (userbouquet.*.tv).
type Bouquet struct {
	Name        string `json:"name"`
	Ref         string `json:"ref"`          // service path, e.g. 1:7:1:0:0:0:0:0:0:0:FROM BOUQUET "userbouquet.favourites.tv" ORDER BY bouquet
	ID          string `json:"id"`           // stable catalog id derived from Ref
	DisplayName string `json:"display_name"` // prefix + Name; set by the directory
}

// Channel is one playable service inside a bouquet.
type Channel struct {
	Name       string `json:"name"`
	ServiceRef string `json:"sref"`
	HD         bool   `json:"hd"`
}

const bouquetIDPrefix = "bouquet_"

// BouquetID derives the catalog id for a bouquet reference. It is reversible
// (see DecodeBouquetID) so distinct references never collide.
func BouquetID(ref string) string {
	return bouquetIDPrefix + EncodeRef(ref)
}

// DecodeBouquetID returns the reference a BouquetID was built from.
func DecodeBouquetID(id string) (string, error) {
	enc, ok := strings.CutPrefix(id, bouquetIDPrefix)
	if !ok {
		return "", fmt.Errorf("bouquet id %q: missing %q prefix", id, bouquetIDPrefix)
	}
	return DecodeRef(enc)
}

// EncodeRef is unpadded base64url of the raw reference bytes.
func EncodeRef(ref string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(ref))
}

// DecodeRef reverses EncodeRef.
func DecodeRef(enc string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return "", fmt.Errorf("decode ref: %w", err)
	}
	return string(b), nil
}

// PiconFilename maps a service reference to the picon file name convention
// used by Enigma2 images: colons become underscores, trailing underscores are
// dropped. "1:0:19:283D:3FB:1:C00000:0:0:0:" -> "1_0_19_283D_3FB_1_C00000_0_0_0".
func PiconFilename(serviceRef string) string {
	return strings.TrimRight(strings.ReplaceAll(serviceRef, ":", "_"), "_")
}
