package store

import (
	"encoding/binary"
	"math"
)

// encodeVector packs v as little-endian FLOAT32, the blob layout the engine
// expects for HASH documents and KNN query parameters.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// scoreFromDistance converts the engine's distance into a similarity where
// higher is better. COSINE and IP distances are 1-similarity.
func scoreFromDistance(metric string, d float64) float64 {
	switch metric {
	case "L2":
		return 1 / (1 + d)
	default:
		return 1 - d
	}
}
