// Package world manages world lifecycle: generation through the
// opaque generator seam, the compressed tile cache, map queries, and
// the map-patch DSL.
package world

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/mnehmos/questforge/pkg/models"
)

// EncodeTileCache compresses the tile grid for the worlds.tile_cache
// column. DecodeTileCache inverts it exactly.
func EncodeTileCache(tiles []*models.Tile) ([]byte, error) {
	raw, err := json.Marshal(tiles)
	if err != nil {
		return nil, fmt.Errorf("encode tile cache: %w", err)
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("compress tile cache: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("flush tile cache: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeTileCache decompresses a tile_cache blob back into the grid.
func DecodeTileCache(blob []byte) ([]*models.Tile, error) {
	zr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("open tile cache: %w", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress tile cache: %w", err)
	}
	var tiles []*models.Tile
	if err := json.Unmarshal(raw, &tiles); err != nil {
		return nil, fmt.Errorf("decode tile cache: %w", err)
	}
	return tiles, nil
}
