// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package spacetime

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// EPSG:4326, epsg:4326, +init=epsg:4326
	epsgShortRe = regexp.MustCompile(`^(?:\+init=)?epsg:(\d+)$`)

	// urn:ogc:def:crs:EPSG::4326, urn:ogc:def:crs:EPSG:9.8.15:4326
	epsgURNRe = regexp.MustCompile(`^urn:ogc:def:crs:epsg:[0-9.]*:(\d+)$`)

	// http://www.opengis.net/def/crs/EPSG/0/4326
	epsgURIRe = regexp.MustCompile(`^https?://www\.opengis\.net/def/crs/epsg/[0-9.]+/(\d+)$`)

	// Trailing top-level authority of a WKT1 or WKT2 definition.
	wktAuthorityRe = regexp.MustCompile(`(?:authority\["epsg",\s*"?(\d+)"?\]|id\["epsg",\s*(\d+)\])\s*\]\s*$`)

	whitespaceRe = regexp.MustCompile(`\s+`)
)

// EPSGCode extracts the EPSG code from common SRS notations. ok is false if
// srs does not name an EPSG code.
func EPSGCode(srs string) (code int, ok bool) {
	s := strings.ToLower(strings.TrimSpace(srs))
	if s == "" {
		return 0, false
	}
	for _, re := range []*regexp.Regexp{epsgShortRe, epsgURNRe, epsgURIRe} {
		if m := re.FindStringSubmatch(s); m != nil {
			return atoi(m[1])
		}
	}
	if m := wktAuthorityRe.FindStringSubmatch(s); m != nil {
		if m[1] != "" {
			return atoi(m[1])
		}
		return atoi(m[2])
	}
	return 0, false
}

func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// SameSRS reports whether a and b describe the same spatial reference system.
// Definitions resolving to an EPSG code are compared by code, everything else
// by text with case and whitespace normalized.
func SameSRS(a, b string) bool {
	ca, oka := EPSGCode(a)
	cb, okb := EPSGCode(b)
	if oka && okb {
		return ca == cb
	}
	return normalizeSRS(a) == normalizeSRS(b)
}

func normalizeSRS(s string) string {
	return whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

// IsProjected reports whether srs is a projected (planar) system. EPSG codes
// 4000-4999 hold geographic 2D systems; WKT and PROJ strings are classified
// by their root keyword.
func IsProjected(srs string) bool {
	if code, ok := EPSGCode(srs); ok {
		return code < 4000 || code > 4999
	}
	s := strings.ToUpper(strings.TrimSpace(srs))
	switch {
	case strings.HasPrefix(s, "PROJCS[") || strings.HasPrefix(s, "PROJCRS["):
		return true
	case strings.HasPrefix(s, "GEOGCS[") || strings.HasPrefix(s, "GEOGCRS[") || strings.HasPrefix(s, "GEODCRS["):
		return false
	case strings.Contains(s, "+PROJ=LONGLAT") || strings.Contains(s, "+PROJ=LATLONG"):
		return false
	}
	return true
}
