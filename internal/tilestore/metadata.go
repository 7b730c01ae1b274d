// Package tilestore caches rendered overlay tiles in a SQLite database.
//
// The layout follows MBTiles (gzip-compressed tile_data, TMS row order, a
// name/value metadata table) with two extra key columns: the layer a tile
// belongs to and the filter variant it was rendered for.
package tilestore

import (
	"fmt"
	"strconv"
	"strings"
)

// Metadata describes the tile set held by a store.
type Metadata struct {
	Name        string // Human-readable identifier
	Format      string // Tile data type, always png for overlays
	Attribution string
	Description string
	Version     string
	Bounds      [4]float64
	MinZoom     int
	MaxZoom     int
}

// toMap converts Metadata to name/value rows. Zero fields are omitted.
func (m Metadata) toMap() map[string]string {
	result := make(map[string]string)

	if m.Name != "" {
		result["name"] = m.Name
	}
	if m.Format != "" {
		result["format"] = m.Format
	}
	if m.MinZoom > 0 {
		result["minzoom"] = strconv.Itoa(m.MinZoom)
	}
	if m.MaxZoom > 0 {
		result["maxzoom"] = strconv.Itoa(m.MaxZoom)
	}
	if m.Bounds != [4]float64{} {
		result["bounds"] = fmt.Sprintf("%.6f,%.6f,%.6f,%.6f",
			m.Bounds[0], m.Bounds[1], m.Bounds[2], m.Bounds[3])
	}
	if m.Attribution != "" {
		result["attribution"] = m.Attribution
	}
	if m.Description != "" {
		result["description"] = m.Description
	}
	if m.Version != "" {
		result["version"] = m.Version
	}
	result["type"] = "overlay"

	return result
}

// metadataFromMap parses rows written by toMap. Malformed numbers are ignored.
func metadataFromMap(rows map[string]string) Metadata {
	meta := Metadata{
		Name:        rows["name"],
		Format:      rows["format"],
		Attribution: rows["attribution"],
		Description: rows["description"],
		Version:     rows["version"],
	}

	if v, ok := rows["minzoom"]; ok {
		if i, err := strconv.Atoi(v); err == nil {
			meta.MinZoom = i
		}
	}
	if v, ok := rows["maxzoom"]; ok {
		if i, err := strconv.Atoi(v); err == nil {
			meta.MaxZoom = i
		}
	}

	// "minLon,minLat,maxLon,maxLat"
	if v, ok := rows["bounds"]; ok {
		parts := strings.Split(v, ",")
		if len(parts) == 4 {
			for i, part := range parts {
				if f, err := strconv.ParseFloat(strings.TrimSpace(part), 64); err == nil {
					meta.Bounds[i] = f
				}
			}
		}
	}

	return meta
}
