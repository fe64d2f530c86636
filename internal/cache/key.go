package cache

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"bus-router/internal/transit"
)

// Fingerprint hashes a schedule so cached plans are dropped whenever any
// line changes. Line order matters.
func Fingerprint(lines []transit.Line) uint64 {
	d := xxhash.New()
	var buf [8]byte
	put := func(v int64) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		d.Write(buf[:])
	}
	put(int64(len(lines)))
	for _, l := range lines {
		put(int64(l.ID))
		put(int64(l.ServiceStart))
		put(int64(l.Fare))
		put(int64(len(l.Stops)))
		for _, s := range l.Stops {
			put(int64(s))
		}
		put(int64(len(l.Gaps)))
		for _, g := range l.Gaps {
			put(int64(g))
		}
	}
	return d.Sum64()
}

// Key names the cached plan for a departure on a fingerprinted schedule.
func Key(fingerprint uint64, dep transit.Departure) string {
	return fmt.Sprintf("plan:%016x:%d:%d:%d", fingerprint, dep.From, dep.To, int64(dep.At))
}
