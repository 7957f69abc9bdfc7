// Package plantuml renders a message sequence as PlantUML source, encodes it
// for the PlantUML server and fetches the rendered image.
package plantuml

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/akr81/CounterExample2Sequence/internal/reconstruct"

	"github.com/klauspost/compress/flate"
)

// DefaultScale is the diagram scale written after @startuml
const DefaultScale = 2.0

const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-_"

// Source returns the PlantUML text of seq. Participants are declared in
// sorted order so the layout does not depend on who acts first.
func Source(seq *reconstruct.Sequence, scale float64) string {
	if scale <= 0 {
		scale = DefaultScale
	}

	var sb strings.Builder
	sb.WriteString("@startuml\n")
	sb.WriteString("scale " + formatScale(scale) + "\n")
	for _, p := range seq.Participants {
		fmt.Fprintf(&sb, "participant %q\n", p)
	}

	for idx, m := range seq.Messages {
		if seq.Loop.Active && idx == seq.Loop.Start {
			sb.WriteString("loop CYCLE\n")
		}
		fmt.Fprintf(&sb, "%q %s %q : %s\n", m.Source, m.Arrow, m.Destination, m.Label)
	}
	if seq.Loop.Active {
		if seq.Loop.Start >= len(seq.Messages) {
			sb.WriteString("loop CYCLE\n")
		}
		sb.WriteString("end\n")
	}

	sb.WriteString("@enduml\n")
	return sb.String()
}

func formatScale(scale float64) string {
	if scale == math.Trunc(scale) {
		return strconv.FormatFloat(scale, 'f', 1, 64)
	}
	return strconv.FormatFloat(scale, 'f', -1, 64)
}

// Encode compresses src with raw deflate and encodes it with the PlantUML
// base64 alphabet
func Encode(src string) (string, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return "", err
	}
	if _, err := w.Write([]byte(src)); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return Encode64(buf.Bytes()), nil
}

// Encode64 maps every 3 bytes to 4 characters, zero padding the last group
func Encode64(data []byte) string {
	var sb strings.Builder
	sb.Grow((len(data) + 2) / 3 * 4)
	for i := 0; i < len(data); i += 3 {
		var group [3]byte
		copy(group[:], data[i:])
		n := uint32(group[0])<<16 | uint32(group[1])<<8 | uint32(group[2])
		sb.WriteByte(alphabet[(n>>18)&0x3F])
		sb.WriteByte(alphabet[(n>>12)&0x3F])
		sb.WriteByte(alphabet[(n>>6)&0x3F])
		sb.WriteByte(alphabet[n&0x3F])
	}
	return sb.String()
}
