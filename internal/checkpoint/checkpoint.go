// Package checkpoint implements the V1 checkpoint grammar: a plain
// text, line-oriented dump of solver progress that makes a run
// resumable.
package checkpoint

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	"github.com/mahdiidarabi/kangaroo-ecdlp/internal/registry"
	"github.com/mahdiidarabi/kangaroo-ecdlp/internal/walker"
)

// ErrCorrupt wraps every checkpoint parsing failure: a missing V1 tag,
// a malformed numeric field, or a distinguished record whose hex
// decoding fails. Callers must abandon the resume on this error without
// having mutated any live state.
var ErrCorrupt = errors.New("checkpoint: corrupt or unsupported file")

// DistinguishedPoint is one registry record in on-disk form.
type DistinguishedPoint struct {
	Key      [33]byte
	Distance *big.Int
	Herd     walker.Herd
}

// Snapshot is the full contents of a checkpoint, independent of file
// format.
type Snapshot struct {
	TotalJumps          uint64
	Duration            float64
	DPBits              int
	DistinguishedPoints []DistinguishedPoint
	GPUPoints           []byte
	GPUDists            []byte
}

// ToRecords converts a Snapshot's distinguished points into the map
// shape registry.Registry.Restore expects.
func (s Snapshot) ToRecords() map[[33]byte]registry.Record {
	out := make(map[[33]byte]registry.Record, len(s.DistinguishedPoints))
	for _, dp := range s.DistinguishedPoints {
		out[dp.Key] = registry.Record{Distance: dp.Distance, Herd: dp.Herd}
	}
	return out
}

// FromRegistry builds the distinguished-point portion of a Snapshot
// from a registry dump (registry.Registry.Snapshot), preserving a
// deterministic order isn't required — the grammar's COUNT/line pairs
// don't imply one.
func FromRegistry(records map[[33]byte]registry.Record) []DistinguishedPoint {
	out := make([]DistinguishedPoint, 0, len(records))
	for k, v := range records {
		out = append(out, DistinguishedPoint{Key: k, Distance: v.Distance, Herd: v.Herd})
	}
	return out
}

// Save writes the V1 grammar. Callers are expected to hold the
// registry lock (or otherwise guarantee a point-in-time-consistent
// snapshot) before calling this.
func Save(w io.Writer, snap Snapshot) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "V1")
	fmt.Fprintf(bw, "TOTAL_JUMPS %d\n", snap.TotalJumps)
	fmt.Fprintf(bw, "DURATION %f\n", snap.Duration)
	fmt.Fprintf(bw, "DP_BITS %d\n", snap.DPBits)

	fmt.Fprintf(bw, "DISTINGUISHED_POINTS %d\n", len(snap.DistinguishedPoints))
	for _, dp := range snap.DistinguishedPoints {
		isTame := 0
		if dp.Herd == walker.Tame {
			isTame = 1
		}
		fmt.Fprintf(bw, "%s %s %d\n", hex.EncodeToString(dp.Key[:]), dp.Distance.Text(16), isTame)
	}

	fmt.Fprintf(bw, "GPU_POINTS %d\n", len(snap.GPUPoints))
	fmt.Fprintln(bw, hex.EncodeToString(snap.GPUPoints))
	fmt.Fprintf(bw, "GPU_DISTS %d\n", len(snap.GPUDists))
	fmt.Fprintln(bw, hex.EncodeToString(snap.GPUDists))

	return bw.Flush()
}

// Load parses the V1 grammar. On any malformed input it returns
// ErrCorrupt and a zero Snapshot — the caller must not apply a partial
// result.
func Load(r io.Reader) (Snapshot, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	if !scanner.Scan() {
		return Snapshot{}, fmt.Errorf("%w: empty file", ErrCorrupt)
	}
	if strings.TrimSpace(scanner.Text()) != "V1" {
		return Snapshot{}, fmt.Errorf("%w: missing V1 tag", ErrCorrupt)
	}

	var snap Snapshot
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "TOTAL_JUMPS":
			v, err := parseUint(fields, 1)
			if err != nil {
				return Snapshot{}, err
			}
			snap.TotalJumps = v

		case "DURATION":
			if len(fields) < 2 {
				return Snapshot{}, fmt.Errorf("%w: DURATION missing value", ErrCorrupt)
			}
			d, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return Snapshot{}, fmt.Errorf("%w: DURATION: %v", ErrCorrupt, err)
			}
			snap.Duration = d

		case "DP_BITS":
			if len(fields) < 2 {
				return Snapshot{}, fmt.Errorf("%w: DP_BITS missing value", ErrCorrupt)
			}
			d, err := strconv.Atoi(fields[1])
			if err != nil {
				return Snapshot{}, fmt.Errorf("%w: DP_BITS: %v", ErrCorrupt, err)
			}
			snap.DPBits = d

		case "DISTINGUISHED_POINTS":
			count, err := parseUint(fields, 1)
			if err != nil {
				return Snapshot{}, err
			}
			pts := make([]DistinguishedPoint, 0, count)
			for i := uint64(0); i < count; i++ {
				if !scanner.Scan() {
					return Snapshot{}, fmt.Errorf("%w: truncated distinguished-point list", ErrCorrupt)
				}
				dp, err := parseDPLine(scanner.Text())
				if err != nil {
					return Snapshot{}, err
				}
				pts = append(pts, dp)
			}
			snap.DistinguishedPoints = pts

		case "GPU_POINTS":
			n, err := parseUint(fields, 1)
			if err != nil {
				return Snapshot{}, err
			}
			if !scanner.Scan() {
				return Snapshot{}, fmt.Errorf("%w: missing GPU_POINTS blob line", ErrCorrupt)
			}
			blob, err := hexOrEmpty(scanner.Text())
			if err != nil {
				return Snapshot{}, fmt.Errorf("%w: GPU_POINTS: %v", ErrCorrupt, err)
			}
			_ = n
			snap.GPUPoints = blob

		case "GPU_DISTS":
			n, err := parseUint(fields, 1)
			if err != nil {
				return Snapshot{}, err
			}
			if !scanner.Scan() {
				return Snapshot{}, fmt.Errorf("%w: missing GPU_DISTS blob line", ErrCorrupt)
			}
			blob, err := hexOrEmpty(scanner.Text())
			if err != nil {
				return Snapshot{}, fmt.Errorf("%w: GPU_DISTS: %v", ErrCorrupt, err)
			}
			_ = n
			snap.GPUDists = blob
		}
	}
	if err := scanner.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	return snap, nil
}

func parseDPLine(line string) (DistinguishedPoint, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return DistinguishedPoint{}, fmt.Errorf("%w: malformed distinguished-point line %q", ErrCorrupt, line)
	}
	keyBytes, err := hex.DecodeString(fields[0])
	if err != nil || len(keyBytes) != 33 {
		return DistinguishedPoint{}, fmt.Errorf("%w: bad point key %q", ErrCorrupt, fields[0])
	}
	dist, ok := new(big.Int).SetString(fields[1], 16)
	if !ok {
		return DistinguishedPoint{}, fmt.Errorf("%w: bad distance %q", ErrCorrupt, fields[1])
	}
	isTame, err := strconv.Atoi(fields[2])
	if err != nil || (isTame != 0 && isTame != 1) {
		return DistinguishedPoint{}, fmt.Errorf("%w: bad herd flag %q", ErrCorrupt, fields[2])
	}

	herd := walker.Wild
	if isTame == 1 {
		herd = walker.Tame
	}

	var key [33]byte
	copy(key[:], keyBytes)
	return DistinguishedPoint{Key: key, Distance: dist, Herd: herd}, nil
}

func parseUint(fields []string, idx int) (uint64, error) {
	if idx >= len(fields) {
		return 0, fmt.Errorf("%w: %s missing value", ErrCorrupt, fields[0])
	}
	v, err := strconv.ParseUint(fields[idx], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrCorrupt, fields[0], err)
	}
	return v, nil
}

func hexOrEmpty(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}

// ReconcileGPUBuffers adapts saved GPU blobs to the current batch size.
// If the byte counts don't match batch*64/batch*32, it truncates or
// zero-pads rather than failing, per spec.md §4.6.
func ReconcileGPUBuffers(points, dists []byte, batch int) (outPoints, outDists []byte, mismatched bool) {
	wantPoints := batch * 64
	wantDists := batch * 32

	outPoints = resize(points, wantPoints)
	outDists = resize(dists, wantDists)
	mismatched = len(points) != wantPoints || len(dists) != wantDists
	return outPoints, outDists, mismatched
}

func resize(b []byte, want int) []byte {
	if len(b) == want {
		return b
	}
	out := make([]byte, want)
	n := len(b)
	if n > want {
		n = want
	}
	copy(out, b[:n])
	return out
}
